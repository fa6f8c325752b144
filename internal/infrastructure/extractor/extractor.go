// Package extractor turns stored documents into plain text, choosing a
// parser by file extension.
package extractor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
	"github.com/kirillkom/ddq-assistant/internal/core/ports"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/extractor/htmltext"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/extractor/markdown"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/extractor/xlsx"
)

const maxDocumentBytes = 64 << 20

type ParseFunc func(raw []byte) (string, error)

type Extractor struct {
	storage  ports.ObjectStorage
	parsers  map[string]ParseFunc
	fallback ParseFunc
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{
		storage: storage,
		parsers: map[string]ParseFunc{
			".pdf":      pdf.Parse,
			".xlsx":     xlsx.Parse,
			".html":     htmltext.Parse,
			".htm":      htmltext.Parse,
			".md":       markdown.Parse,
			".markdown": markdown.Parse,
		},
		fallback: plaintext.Parse,
	}
}

// Register overrides the parser for an extension such as ".docx".
func (e *Extractor) Register(ext string, parse ParseFunc) {
	e.parsers[strings.ToLower(ext)] = parse
}

// Extract reads the stored file and parses it. A file that cannot be parsed
// yields empty text; only storage failures are returned as errors.
func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, maxDocumentBytes))
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(doc.Filename))
	parse, ok := e.parsers[ext]
	if !ok {
		parse = e.fallback
	}
	text, err := parse(raw)
	if err != nil {
		slog.Warn("document_extract_failed",
			"document_id", doc.ID,
			"filename", doc.Filename,
			"extension", ext,
			"error", err,
		)
		return "", nil
	}
	return strings.TrimSpace(text), nil
}
