package usecase

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
	"github.com/kirillkom/ddq-assistant/internal/core/ports"
)

const (
	defaultTopK               = 3
	defaultSemanticCandidates = 20
)

// Factual questions skip the semantic stage and go straight to keyword search.
var interrogativePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwhat\s+(is|are|was|were)\b`),
	regexp.MustCompile(`(?i)\bwho\s+(is|are|was|were)\b`),
	regexp.MustCompile(`(?i)\bhow\s+(many|much)\b`),
	regexp.MustCompile(`(?i)\bwhen\s+(is|was|were|did)\b`),
	regexp.MustCompile(`(?i)\bwhere\s+(is|are|was)\b`),
	regexp.MustCompile(`(?i)\bname\s+of\b`),
}

func isInterrogative(query string) bool {
	for _, re := range interrogativePatterns {
		if re.MatchString(query) {
			return true
		}
	}
	return false
}

type RetrieveUseCase struct {
	embedder   ports.Embedder
	vectorDB   ports.VectorStore
	documents  ports.DocumentRepository
	keywords   *KeywordTable
	candidates int
}

func NewRetrieveUseCase(
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	documents ports.DocumentRepository,
	keywords *KeywordTable,
	semanticCandidates int,
) *RetrieveUseCase {
	if keywords == nil {
		keywords = DefaultKeywordTable()
	}
	if semanticCandidates <= 0 {
		semanticCandidates = defaultSemanticCandidates
	}
	return &RetrieveUseCase{
		embedder:   embedder,
		vectorDB:   vectorDB,
		documents:  documents,
		keywords:   keywords,
		candidates: semanticCandidates,
	}
}

// Search runs the cascade: interrogative short-circuit, lexically filtered
// semantic search, then keyword search. Semantic failures degrade to the
// keyword stage; only a failing document store is returned as an error.
func (uc *RetrieveUseCase) Search(
	ctx context.Context,
	query string,
	k int,
	filter domain.SearchFilter,
) (domain.SearchOutcome, error) {
	if k <= 0 {
		k = defaultTopK
	}

	if !isInterrogative(query) {
		if results := uc.semantic(ctx, query, k, filter); len(results) > 0 {
			return domain.SearchOutcome{Strategy: domain.StrategySemantic, Results: results}, nil
		}
	}

	results, err := uc.keyword(ctx, query, k, filter)
	if err != nil {
		return domain.SearchOutcome{}, err
	}
	if len(results) == 0 {
		return domain.SearchOutcome{Strategy: domain.StrategyNone, Results: []domain.SearchResult{}}, nil
	}
	return domain.SearchOutcome{Strategy: domain.StrategyKeyword, Results: results}, nil
}

func (uc *RetrieveUseCase) semantic(ctx context.Context, query string, k int, filter domain.SearchFilter) []domain.SearchResult {
	if uc.embedder == nil || uc.vectorDB == nil {
		return nil
	}
	queryTokens := contentTokens(query)
	if len(queryTokens) == 0 {
		return nil
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil
	}
	candidates, err := uc.vectorDB.Search(ctx, queryVector, max(uc.candidates, k), filter)
	if err != nil {
		return nil
	}

	out := make([]domain.SearchResult, 0, k)
	for _, candidate := range candidates {
		if !filter.Allows(candidate.Metadata.DocumentID) {
			continue
		}
		if !sharesToken(queryTokens, toTokenSet(candidate.Text)) {
			continue
		}
		out = append(out, candidate)
		if len(out) == k {
			break
		}
	}
	return out
}

func (uc *RetrieveUseCase) keyword(ctx context.Context, query string, k int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	docs, err := uc.documents.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents for keyword search: %w", err)
	}

	keywords := uc.keywords.Expand(query)
	if len(keywords) == 0 {
		return nil, nil
	}

	scored := make([]domain.SearchResult, 0, 32)
	for _, doc := range docs {
		if !doc.Indexed || !filter.Allows(doc.ID) {
			continue
		}
		for _, chunk := range doc.Chunks {
			score := uc.keywords.Score(keywords, chunk.Text)
			if score == 0 {
				continue
			}
			scored = append(scored, domain.ResultFromChunk(chunk, float64(score)))
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}
