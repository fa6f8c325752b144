package domain

type RetrievalStrategy string

const (
	StrategySemantic RetrievalStrategy = "semantic"
	StrategyKeyword  RetrievalStrategy = "keyword"
	StrategyNone     RetrievalStrategy = "none"
)

// SearchFilter restricts retrieval to a set of documents; empty means all.
type SearchFilter struct {
	DocumentIDs []string
}

func (f SearchFilter) Allows(documentID string) bool {
	if len(f.DocumentIDs) == 0 {
		return true
	}
	for _, id := range f.DocumentIDs {
		if id == documentID {
			return true
		}
	}
	return false
}

// SearchResult is the single result type shared by every retrieval strategy.
type SearchResult struct {
	ChunkID  string        `json:"chunk_id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
}

func ResultFromChunk(chunk Chunk, score float64) SearchResult {
	return SearchResult{
		ChunkID:  chunk.ID,
		Text:     chunk.Text,
		Metadata: chunk.Metadata,
		Score:    score,
	}
}

type SearchOutcome struct {
	Strategy RetrievalStrategy `json:"strategy"`
	Results  []SearchResult    `json:"results"`
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

type Completion struct {
	Text             string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// CompletionCapabilities describes backend limits that drive batch scheduling.
type CompletionCapabilities struct {
	Provider          string
	RequestsPerMinute int
}

func (c CompletionCapabilities) RateLimited() bool {
	return c.RequestsPerMinute > 0
}
