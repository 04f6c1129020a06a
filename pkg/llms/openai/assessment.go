package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/model"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/utils"
	openai "github.com/openai/openai-go/v3"
)

type assessmentGenerator struct {
	audio  model.AudioHandle
	prompt string
	opts   model.AssessmentOptions
	api    chatCompletionAPI
}

// NewAssessmentGenerator prepares an assessment through an audio-capable chat model.
// Audio is always sent inline; UploadMode and DeleteUploaded are ignored.
func NewAssessmentGenerator(
	audio model.AudioHandle,
	prompt string,
	opts model.AssessmentOptions,
) (model.AssessmentGenerator, error) {
	if strings.TrimSpace(audio.Path) == "" {
		return nil, utils.WrapIfNotNil(errors.New("audio path is required"))
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, utils.WrapIfNotNil(errors.New("prompt is required"))
	}
	if opts.Structured {
		return nil, utils.WrapIfNotNil(errors.New("structured reports are not supported by the openai provider"))
	}

	return &assessmentGenerator{
		audio:  audio,
		prompt: prompt,
		opts:   opts,
		api:    newChatCompletionAPI(opts),
	}, nil
}

func (g *assessmentGenerator) Generate(ctx context.Context) (model.Assessment, model.GenerationMetadata, error) {
	start := time.Now()
	modelName := resolveModelName(g.opts)
	meta := initMetadata(modelName)
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	format, err := inputAudioFormat(g.audio)
	if err != nil {
		log.Errorf("error: %v", err)
		return model.Assessment{}, meta, utils.WrapIfNotNil(err)
	}

	audioBytes, err := os.ReadFile(g.audio.Path)
	if err != nil {
		log.Errorf("error: %v", err)
		return model.Assessment{}, meta, utils.WrapIfNotNil(err)
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(modelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(g.prompt),
				openai.InputAudioContentPart(openai.ChatCompletionContentPartInputAudioInputAudioParam{
					Data:   base64.StdEncoding.EncodeToString(audioBytes),
					Format: format,
				}),
			}),
		},
	}
	if g.opts.Temperature != nil {
		params.Temperature = openai.Float(*g.opts.Temperature)
	}
	if g.opts.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*g.opts.MaxTokens))
	}

	log.Infof("assessment_request model=%q audio_id=%s format=%s", modelName, g.audio.ID, format)
	completion, err := g.api.New(ctx, params)
	if err != nil {
		log.Errorf("error: %v", err)
		return model.Assessment{}, meta, utils.WrapIfNotNil(err)
	}
	if completion == nil {
		err = errors.New("chat completions API returned nil response")
		log.Errorf("error: %v", err)
		return model.Assessment{}, meta, utils.WrapIfNotNil(err)
	}
	applyCompletionMetadata(meta, completion)

	if len(completion.Choices) == 0 {
		err = errors.New("assessment response has no choices")
		log.Errorf("error: %v", err)
		return model.Assessment{}, meta, utils.WrapIfNotNil(err)
	}
	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		err = errors.New("assessment response is empty")
		if refusal := strings.TrimSpace(completion.Choices[0].Message.Refusal); refusal != "" {
			err = errors.New("assessment refused: " + refusal)
		}
		log.Errorf("error: %v", err)
		return model.Assessment{}, meta, utils.WrapIfNotNil(err)
	}

	return model.Assessment{
		Text:  text,
		Model: modelName,
		Usage: model.TokenUsage{
			PromptTokens: completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
			TotalTokens:  completion.Usage.TotalTokens,
		},
	}, meta, nil
}

// inputAudioFormat maps the handle onto the two formats the input_audio part accepts.
func inputAudioFormat(audio model.AudioHandle) (string, error) {
	switch strings.ToLower(strings.TrimSpace(audio.MIMEType)) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav", nil
	case "audio/mpeg", "audio/mp3":
		return "mp3", nil
	case "":
	default:
		return "", errors.New("unsupported audio mime type for openai input: " + audio.MIMEType)
	}

	switch strings.ToLower(filepath.Ext(audio.Path)) {
	case ".wav":
		return "wav", nil
	case ".mp3":
		return "mp3", nil
	}
	return "", errors.New("cannot determine audio format for " + audio.Path)
}
