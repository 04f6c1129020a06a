package main

import (
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/assessment"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/audio"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/config"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/llms/gemini"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/llms/openai"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/model"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "pronounce",
		Short:         "Pronunciation assessment of spoken phrases with hosted audio models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file (defaults to ./.env when present)")

	cmd.AddCommand(
		newServeCmd(opts),
		newAssessCmd(opts),
		newModelsCmd(opts),
		newSweepCmd(opts),
	)
	return cmd
}

// load reads configuration and applies the logging settings.
func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath, o.envFile)
	if err != nil {
		return cfg, err
	}
	if err := logging.Configure(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newNormalizer(cfg config.Config) *audio.Normalizer {
	opts := []audio.NormalizerOption{
		audio.WithMaxBytes(cfg.Audio.MaxUploadBytes),
		audio.WithTargetSampleRate(cfg.Audio.TargetSampleRate),
	}
	if cfg.Audio.Transcode {
		opts = append(opts, audio.WithTranscoder(audio.NewFFmpegTranscoder(cfg.Audio.FFmpegPath)))
	}
	return audio.NewNormalizer(audio.NewStore(cfg.Audio.ScratchDir), opts...)
}

func newService(cfg config.Config, normalizer *audio.Normalizer) (*assessment.Service, error) {
	return assessment.NewService(
		normalizer,
		assessment.WithCatalog(cfg.Catalog()),
		assessment.WithProvider(model.ProviderGemini, gemini.NewAssessmentGenerator, cfg.GeminiOptions()),
		assessment.WithProvider(model.ProviderOpenAI, openai.NewAssessmentGenerator, cfg.OpenAIOptions()),
		assessment.WithRemoveAudioAfter(cfg.Audio.RemoveAfterAssess),
	)
}
