package openai

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/model"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	providerName     = "openai"
	defaultModelName = "gpt-4o-audio-preview"
	apiKeyEnv        = "OPEN_API_TOKEN"
)

type chatCompletionAPI interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

func newChatCompletionAPI(opts model.AssessmentOptions) chatCompletionAPI {
	requestOpts := make([]option.RequestOption, 0, 2)
	if url := strings.TrimSpace(opts.URL); url != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(url))
	}

	token := strings.TrimSpace(opts.AuthToken)
	if token == "" {
		token = strings.TrimSpace(os.Getenv(apiKeyEnv))
	}
	if token != "" {
		requestOpts = append(requestOpts, option.WithAPIKey(token))
	}

	apiClient := openai.NewClient(requestOpts...)
	return &apiClient.Chat.Completions
}

func initMetadata(modelName string) model.GenerationMetadata {
	if strings.TrimSpace(modelName) == "" {
		modelName = "unknown"
	}
	return model.GenerationMetadata{
		model.MetadataKeyProvider:   providerName,
		model.MetadataKeyModel:      modelName,
		model.MetadataKeyUploadMode: string(model.UploadModeInline),
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
	return defaultModelName
}

func applyCompletionMetadata(meta model.GenerationMetadata, completion *openai.ChatCompletion) {
	if meta == nil || completion == nil {
		return
	}
	meta[model.MetadataKeyInputTokens] = strconv.FormatInt(completion.Usage.PromptTokens, 10)
	meta[model.MetadataKeyOutputTokens] = strconv.FormatInt(completion.Usage.CompletionTokens, 10)
	meta[model.MetadataKeyTotalTokens] = strconv.FormatInt(completion.Usage.TotalTokens, 10)
	meta[model.MetadataKeyCachedInputTokens] = strconv.FormatInt(completion.Usage.PromptTokensDetails.CachedTokens, 10)
	meta[model.MetadataKeyReasoningTokens] = strconv.FormatInt(completion.Usage.CompletionTokensDetails.ReasoningTokens, 10)
	if strings.TrimSpace(completion.ID) != "" {
		meta[model.MetadataKeyResponseID] = completion.ID
	}
	if len(completion.Choices) > 0 {
		meta[model.MetadataKeyResponseStatus] = completion.Choices[0].FinishReason
	}
}
