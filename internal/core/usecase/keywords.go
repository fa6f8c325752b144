package usecase

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

//go:embed keywords.yaml
var defaultKeywordsYAML []byte

// KeywordTable expands a query into document vocabulary for keyword search.
type KeywordTable struct {
	HighWeight []string            `yaml:"high_weight"`
	Mappings   map[string][]string `yaml:"mappings"`

	highWeight map[string]struct{}
}

func DefaultKeywordTable() *KeywordTable {
	table, err := ParseKeywordTable(defaultKeywordsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded keyword table: %v", err))
	}
	return table
}

// ParseKeywordTable decodes a YAML keyword table.
func ParseKeywordTable(raw []byte) (*KeywordTable, error) {
	var table KeywordTable
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse keyword table", err)
	}
	if len(table.Mappings) == 0 && len(table.HighWeight) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse keyword table", errors.New("table is empty"))
	}

	normalized := make(map[string][]string, len(table.Mappings))
	for phrase, words := range table.Mappings {
		key := strings.ToLower(strings.TrimSpace(phrase))
		if key == "" {
			continue
		}
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				normalized[key] = append(normalized[key], w)
			}
		}
	}
	table.Mappings = normalized

	table.highWeight = make(map[string]struct{}, len(table.HighWeight))
	for _, w := range table.HighWeight {
		table.highWeight[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &table, nil
}

// Expand returns the mapped vocabulary of every phrase found in the query
// united with the query's own content words.
func (t *KeywordTable) Expand(query string) map[string]struct{} {
	lower := strings.ToLower(query)
	out := contentTokens(query)
	for phrase, words := range t.Mappings {
		if !strings.Contains(lower, phrase) {
			continue
		}
		for _, w := range words {
			out[w] = struct{}{}
		}
	}
	return out
}

func (t *KeywordTable) Weight(keyword string) int {
	if _, ok := t.highWeight[keyword]; ok {
		return 2
	}
	return 1
}

// Score sums the weights of the keywords present in text.
func (t *KeywordTable) Score(keywords map[string]struct{}, text string) int {
	tokens := toTokenSet(text)
	score := 0
	for keyword := range keywords {
		if _, ok := tokens[keyword]; ok {
			score += t.Weight(keyword)
		}
	}
	return score
}
