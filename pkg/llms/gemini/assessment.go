package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/model"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/utils"
	"google.golang.org/genai"
)

type assessmentGenerator struct {
	audio  model.AudioHandle
	prompt string
	opts   model.AssessmentOptions
	newAPI func(ctx context.Context, opts model.AssessmentOptions) (modelAPI, error)
}

// NewAssessmentGenerator prepares one pronunciation assessment of audio against prompt.
// No remote call is made until Generate.
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

	return &assessmentGenerator{
		audio:  audio,
		prompt: prompt,
		opts:   opts,
		newAPI: newModelAPI,
	}, nil
}

func (g *assessmentGenerator) Generate(ctx context.Context) (model.Assessment, model.GenerationMetadata, error) {
	start := time.Now()
	modelName := resolveModelName(g.opts)
	meta := initMetadata(modelName)
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	api, err := g.newAPI(ctx, g.opts)
	if err != nil {
		log.Errorf("error: %v", err)
		return model.Assessment{}, meta, utils.WrapIfNotNil(err)
	}

	audioPart, uploaded, err := g.audioPart(ctx, api, meta)
	if err != nil {
		log.Errorf("error: %v", err)
		return model.Assessment{}, meta, utils.WrapIfNotNil(err)
	}
	if uploaded != nil && g.opts.DeleteUploaded {
		defer g.deleteUploaded(ctx, api, uploaded)
	}

	config, err := buildGenerateContentConfig(g.opts)
	if err != nil {
		log.Errorf("error: %v", err)
		return model.Assessment{}, meta, utils.WrapIfNotNil(err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(
			[]*genai.Part{
				genai.NewPartFromText(g.prompt),
				audioPart,
			},
			genai.RoleUser,
		),
	}

	log.Infof(
		"assessment_request model=%q audio_id=%s upload_mode=%s structured=%t",
		modelName,
		g.audio.ID,
		meta[model.MetadataKeyUploadMode],
		g.opts.Structured,
	)
	response, err := api.GenerateContent(ctx, modelName, contents, config)
	if err != nil {
		log.Errorf("error: %v", err)
		return model.Assessment{}, meta, utils.WrapIfNotNil(err)
	}
	if response == nil {
		err = errors.New("generate content returned nil response")
		log.Errorf("error: %v", err)
		return model.Assessment{}, meta, utils.WrapIfNotNil(err)
	}
	applyAssessmentMetadata(meta, response)

	text := strings.TrimSpace(response.Text())
	if text == "" {
		err = errors.New("assessment response is empty")
		if status := meta[model.MetadataKeyResponseStatus]; status != "" {
			err = errors.New("assessment response is empty: finish_reason=" + status)
		}
		log.Errorf("error: %v", err)
		return model.Assessment{}, meta, utils.WrapIfNotNil(err)
	}

	result := model.Assessment{
		Text:  text,
		Model: modelName,
		Usage: usageFromResponse(response),
	}
	if g.opts.Structured {
		var report model.PronunciationReport
		err = json.Unmarshal([]byte(text), &report)
		if err != nil {
			log.Errorf("error: %v", err)
			return model.Assessment{}, meta, utils.WrapIfNotNil(err)
		}
		result.Report = &report
		result.Text = report.Render()
	}
	return result, meta, nil
}

// audioPart returns the part referencing the recording. In files mode the upload is
// returned so the caller can delete it.
func (g *assessmentGenerator) audioPart(
	ctx context.Context,
	api modelAPI,
	meta model.GenerationMetadata,
) (*genai.Part, *genai.File, error) {
	mimeType := strings.TrimSpace(g.audio.MIMEType)
	if mimeType == "" {
		resolved, err := resolveAudioMIMEType(g.audio.Path)
		if err != nil {
			return nil, nil, err
		}
		mimeType = resolved
	}

	mode := resolveUploadMode(g.opts)
	meta[model.MetadataKeyUploadMode] = string(mode)

	if mode == model.UploadModeInline {
		audioBytes, err := os.ReadFile(g.audio.Path)
		if err != nil {
			return nil, nil, utils.WrapIfNotNil(err)
		}
		return genai.NewPartFromBytes(audioBytes, mimeType), nil, nil
	}

	file, err := api.UploadFromPath(ctx, g.audio.Path, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: g.audio.ID,
	})
	if err != nil {
		return nil, nil, utils.WrapIfNotNil(err, "upload audio")
	}
	if file == nil || strings.TrimSpace(file.URI) == "" {
		return nil, nil, utils.WrapIfNotNil(errors.New("upload returned no file uri"))
	}
	if strings.TrimSpace(file.MIMEType) != "" {
		mimeType = file.MIMEType
	}
	meta[model.MetadataKeyUploadedFile] = file.Name
	return genai.NewPartFromURI(file.URI, mimeType), file, nil
}

func (g *assessmentGenerator) deleteUploaded(ctx context.Context, api modelAPI, file *genai.File) {
	if strings.TrimSpace(file.Name) == "" {
		return
	}
	if err := api.DeleteFile(context.WithoutCancel(ctx), file.Name); err != nil {
		logging.NewLogger(ctx).Warnf("delete uploaded file %s: %v", file.Name, err)
	}
}

func buildGenerateContentConfig(opts model.AssessmentOptions) (*genai.GenerateContentConfig, error) {
	config := &genai.GenerateContentConfig{}
	if opts.Temperature != nil {
		temp := float32(*opts.Temperature)
		config.Temperature = &temp
	}
	if opts.MaxTokens != nil {
		config.MaxOutputTokens = int32(*opts.MaxTokens)
	}
	if opts.Structured {
		schema, err := generateJSONSchema[model.PronunciationReport]()
		if err != nil {
			return nil, err
		}
		config.ResponseMIMEType = "application/json"
		config.ResponseJsonSchema = schema
	}
	return config, nil
}
