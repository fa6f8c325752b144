// Package llm holds what the completion backends share: the provider
// catalog and classification of provider HTTP failures.
package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

type Kind string

const (
	KindOllama     Kind = "ollama"
	KindOpenAI     Kind = "openai"
	KindExtractive Kind = "extractive"
)

// Preset describes a completion provider. RequestsPerMinute > 0 marks a
// quota-limited tier; 0 means unlimited.
type Preset struct {
	Name              string
	Kind              Kind
	BaseURL           string
	DefaultModel      string
	RequestsPerMinute int
	APIKeyEnv         string
}

var presets = map[string]Preset{
	"ollama": {
		Name:         "ollama",
		Kind:         KindOllama,
		BaseURL:      "http://localhost:11434",
		DefaultModel: "llama3.1:8b",
	},
	"openrouter": {
		Name:              "openrouter",
		Kind:              KindOpenAI,
		BaseURL:           "https://openrouter.ai/api/v1",
		DefaultModel:      "stepfun/step-3.5-flash:free",
		RequestsPerMinute: 20,
		APIKeyEnv:         "OPENROUTER_API_KEY",
	},
	"zai": {
		Name:              "zai",
		Kind:              KindOpenAI,
		BaseURL:           "https://api.z.ai/api/paas/v4",
		DefaultModel:      "glm-4.7-flash",
		RequestsPerMinute: 20,
		APIKeyEnv:         "ZAI_API_KEY",
	},
	"groq": {
		Name:         "groq",
		Kind:         KindOpenAI,
		BaseURL:      "https://api.groq.com/openai/v1",
		DefaultModel: "llama-3.1-8b-instant",
		APIKeyEnv:    "GROQ_API_KEY",
	},
	"together": {
		Name:         "together",
		Kind:         KindOpenAI,
		BaseURL:      "https://api.together.xyz/v1",
		DefaultModel: "meta-llama/Llama-3.3-70B-Instruct-Turbo",
		APIKeyEnv:    "TOGETHER_API_KEY",
	},
	"grok": {
		Name:         "grok",
		Kind:         KindOpenAI,
		BaseURL:      "https://api.x.ai/v1",
		DefaultModel: "grok-3-mini",
		APIKeyEnv:    "XAI_API_KEY",
	},
	"openai": {
		Name:         "openai",
		Kind:         KindOpenAI,
		BaseURL:      "https://api.openai.com/v1",
		DefaultModel: "gpt-4o-mini",
		APIKeyEnv:    "OPENAI_API_KEY",
	},
	"extractive": {
		Name: "extractive",
		Kind: KindExtractive,
	},
}

func Lookup(name string) (Preset, error) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Preset{}, domain.WrapError(domain.ErrInvalidInput, "lookup provider",
			fmt.Errorf("unknown provider %q (known: %s)", name, strings.Join(Names(), ", ")))
	}
	return p, nil
}

func Names() []string {
	out := make([]string, 0, len(presets))
	for name := range presets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Resolve applies configuration overrides to a preset. rpm < 0 keeps the
// preset's quota.
func (p Preset) Resolve(baseURL, model string, rpm int) Preset {
	if strings.TrimSpace(baseURL) != "" {
		p.BaseURL = baseURL
	}
	if strings.TrimSpace(model) != "" {
		p.DefaultModel = model
	}
	if rpm >= 0 {
		p.RequestsPerMinute = rpm
	}
	return p
}

func (p Preset) Capabilities() domain.CompletionCapabilities {
	return domain.CompletionCapabilities{Provider: p.Name, RequestsPerMinute: p.RequestsPerMinute}
}
