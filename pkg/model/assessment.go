package model

import (
	"context"
	"strconv"
	"strings"
)

// NewAssessmentGeneratorFunc is the factory each provider implements for pronunciation assessment.
type NewAssessmentGeneratorFunc func(audio AudioHandle, prompt string, opts AssessmentOptions) (AssessmentGenerator, error)

type AssessmentGenerator interface {
	Generate(ctx context.Context) (Assessment, GenerationMetadata, error)
}

type UploadMode string

const (
	// UploadModeFiles uploads the canonical file to the provider and references it by URI.
	UploadModeFiles UploadMode = "files"
	// UploadModeInline embeds the audio bytes in the request body.
	UploadModeInline UploadMode = "inline"
)

type AssessmentOptions struct {
	URL       string
	AuthToken string
	Model     string
	// UploadMode is only honored by providers with a files API.
	UploadMode UploadMode
	// DeleteUploaded removes the provider-side copy once the response arrives.
	DeleteUploaded bool
	// Structured asks the provider for a PronunciationReport instead of free text.
	Structured  bool
	Temperature *float64
	MaxTokens   *int
}

type TokenUsage struct {
	PromptTokens int64 `json:"prompt_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

type Assessment struct {
	Text   string               `json:"text"`
	Model  string               `json:"model"`
	Usage  TokenUsage           `json:"usage"`
	Report *PronunciationReport `json:"report,omitempty"`
}

// PronunciationReport mirrors the sections the assessment prompt asks for.
type PronunciationReport struct {
	PhraseInput     string   `json:"phrase_input" jsonschema:"description=The reference phrase exactly as provided"`
	PhraseDetected  string   `json:"phrase_detected" jsonschema:"description=The phrase heard in the audio"`
	Comparison      string   `json:"comparison" jsonschema:"description=Similarities and differences"`
	ProblemAreas    []string `json:"problem_areas" jsonschema:"description=Pronunciation issues"`
	Recommendations []string `json:"recommendations" jsonschema:"description=Guidance per issue"`
	RatingPercent   int      `json:"rating_percent" jsonschema:"minimum=0,maximum=100"`
}

// Render lays the report out in the same section order the free-text prompt requests.
func (r PronunciationReport) Render() string {
	var b strings.Builder
	b.WriteString("Phrase (Input): ")
	b.WriteString(r.PhraseInput)
	b.WriteString("\nPhrase (Detected): ")
	b.WriteString(r.PhraseDetected)
	b.WriteString("\n\nComparison:\n")
	b.WriteString(r.Comparison)
	b.WriteString("\n\nProblem Areas:\n")
	writeBullets(&b, r.ProblemAreas)
	b.WriteString("\nRecommendations for Improvement:\n")
	writeBullets(&b, r.Recommendations)
	b.WriteString("\nOverall Pronunciation Rating:\n[")
	b.WriteString(strconv.Itoa(r.RatingPercent))
	b.WriteString("]%")
	return b.String()
}

func writeBullets(b *strings.Builder, items []string) {
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}
