package gemini

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/model"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/utils"
	"google.golang.org/genai"
)

const (
	providerName               = "gemini"
	defaultGenerationModelName = model.DefaultModelName
	apiKeyEnv                  = "GEMINI_KEY"
)

// modelAPI is the slice of the genai client an assessment needs.
type modelAPI interface {
	UploadFromPath(ctx context.Context, path string, cfg *genai.UploadFileConfig) (*genai.File, error)
	DeleteFile(ctx context.Context, name string) error
	GenerateContent(
		ctx context.Context,
		modelName string,
		contents []*genai.Content,
		cfg *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

type genaiAPI struct {
	client *genai.Client
}

func (a *genaiAPI) UploadFromPath(ctx context.Context, path string, cfg *genai.UploadFileConfig) (*genai.File, error) {
	return a.client.Files.UploadFromPath(ctx, path, cfg)
}

func (a *genaiAPI) DeleteFile(ctx context.Context, name string) error {
	_, err := a.client.Files.Delete(ctx, name, nil)
	return err
}

func (a *genaiAPI) GenerateContent(
	ctx context.Context,
	modelName string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	return a.client.Models.GenerateContent(ctx, modelName, contents, cfg)
}

func newModelAPI(ctx context.Context, opts model.AssessmentOptions) (modelAPI, error) {
	client, err := newAPIClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &genaiAPI{client: client}, nil
}

// newAPIClient builds a client from explicit options. GEMINI_KEY is only consulted when
// no token was passed.
func newAPIClient(ctx context.Context, opts model.AssessmentOptions) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
	}

	token := strings.TrimSpace(opts.AuthToken)
	if token == "" {
		token = strings.TrimSpace(os.Getenv(apiKeyEnv))
	}
	if token != "" {
		clientCfg.APIKey = token
	}

	baseURL := strings.TrimSpace(opts.URL)
	if baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{
			BaseURL: baseURL,
		}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return client, nil
}

func initMetadata(modelName string) model.GenerationMetadata {
	if strings.TrimSpace(modelName) == "" {
		modelName = "unknown"
	}

	return model.GenerationMetadata{
		model.MetadataKeyProvider: providerName,
		model.MetadataKeyModel:    modelName,
	}
}

func setLatencyMetadata(meta model.GenerationMetadata, start time.Time) {
	if meta == nil {
		return
	}
	meta[model.MetadataKeyLatencyMs] = strconv.FormatInt(time.Since(start).Milliseconds(), 10)
}

func resolveModelName(opts model.AssessmentOptions) string {
	if name := strings.TrimSpace(opts.Model); name != "" {
		return name
	}
	return defaultGenerationModelName
}

func resolveUploadMode(opts model.AssessmentOptions) model.UploadMode {
	switch opts.UploadMode {
	case model.UploadModeInline:
		return model.UploadModeInline
	default:
		return model.UploadModeFiles
	}
}

func usageFromResponse(response *genai.GenerateContentResponse) model.TokenUsage {
	if response == nil || response.UsageMetadata == nil {
		return model.TokenUsage{}
	}
	usage := response.UsageMetadata
	return model.TokenUsage{
		PromptTokens: int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}

func applyAssessmentMetadata(meta model.GenerationMetadata, response *genai.GenerateContentResponse) {
	if meta == nil || response == nil || response.UsageMetadata == nil {
		return
	}

	meta[model.MetadataKeyInputTokens] = strconv.Itoa(int(response.UsageMetadata.PromptTokenCount))
	meta[model.MetadataKeyOutputTokens] = strconv.Itoa(int(response.UsageMetadata.CandidatesTokenCount))
	meta[model.MetadataKeyTotalTokens] = strconv.Itoa(int(response.UsageMetadata.TotalTokenCount))
	meta[model.MetadataKeyCachedInputTokens] = strconv.Itoa(int(response.UsageMetadata.CachedContentTokenCount))
	meta[model.MetadataKeyReasoningTokens] = strconv.Itoa(int(response.UsageMetadata.ThoughtsTokenCount))
	if strings.TrimSpace(response.ResponseID) != "" {
		meta[model.MetadataKeyResponseID] = response.ResponseID
	}
	if len(response.Candidates) > 0 && response.Candidates[0] != nil {
		meta[model.MetadataKeyResponseStatus] = string(response.Candidates[0].FinishReason)
	}
}
