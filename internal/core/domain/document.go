package domain

import "time"

type Document struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mime_type,omitempty"`
	StoragePath string    `json:"storage_path,omitempty"`
	Content     string    `json:"content,omitempty"`
	Chunks      []Chunk   `json:"chunks"`
	Indexed     bool      `json:"indexed"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ChunkMetadata is copied onto every chunk so search results can be cited
// without loading the owning document.
type ChunkMetadata struct {
	DocumentID string `json:"doc_id"`
	ChunkIndex int    `json:"chunk_index"`
	Filename   string `json:"filename"`
}

type Chunk struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"document_id"`
	Index      int           `json:"index"`
	Text       string        `json:"text"`
	Offset     int           `json:"offset"`
	Overlap    int           `json:"overlap"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// TextSegment is a chunker output before it is bound to a document.
// Offset is the byte offset of Text in the source; Overlap is the number of
// leading bytes shared with the previous segment.
type TextSegment struct {
	Index   int
	Text    string
	Offset  int
	Overlap int
}

func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Chunks = append([]Chunk(nil), d.Chunks...)
	return &out
}
