package model

import "strings"

type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

type ModelInfo struct {
	Name     string   `json:"name" yaml:"name"`
	Provider Provider `json:"provider" yaml:"provider"`
}

const DefaultModelName = "gemini-2.0-flash"

// DefaultModels is the fixed set of identifiers offered to callers.
func DefaultModels() []ModelInfo {
	return []ModelInfo{
		{Name: "gemini-1.5-flash-8b", Provider: ProviderGemini},
		{Name: "gemini-2.0-flash", Provider: ProviderGemini},
		{Name: "gemini-2.0-flash-lite-preview-02-05", Provider: ProviderGemini},
		{Name: "gemini-1.5-flash", Provider: ProviderGemini},
		{Name: "gpt-4o-audio-preview", Provider: ProviderOpenAI},
	}
}

// ModelCatalog resolves a requested model name against an enumerated list.
type ModelCatalog struct {
	models       []ModelInfo
	defaultModel string
}

func NewModelCatalog(models []ModelInfo, defaultModel string) ModelCatalog {
	cloned := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			continue
		}
		cloned = append(cloned, ModelInfo{Name: name, Provider: m.Provider})
	}
	return ModelCatalog{models: cloned, defaultModel: strings.TrimSpace(defaultModel)}
}

func (c ModelCatalog) Models() []ModelInfo {
	return append([]ModelInfo(nil), c.models...)
}

func (c ModelCatalog) DefaultModel() string {
	return c.defaultModel
}

// Resolve returns the model for name, falling back to the default when name is blank.
func (c ModelCatalog) Resolve(name string) (ModelInfo, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = c.defaultModel
	}
	for _, m := range c.models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelInfo{}, false
}
