package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
	"github.com/kirillkom/ddq-assistant/internal/core/ports"
)

const noTextError = "no extractable text"

type IndexDocumentUseCase struct {
	documents ports.DocumentRepository
	projects  ports.ProjectRepository
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
}

func NewIndexDocumentUseCase(
	documents ports.DocumentRepository,
	projects ports.ProjectRepository,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
) *IndexDocumentUseCase {
	return &IndexDocumentUseCase{
		documents: documents,
		projects:  projects,
		storage:   storage,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectorDB:  vectorDB,
	}
}

// Upload stores the raw file and registers an unindexed document.
func (uc *IndexDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("filename is required"))
	}
	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		Chunks:      []domain.Chunk{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.documents.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}
	return doc, nil
}

// IndexDocument extracts, chunks, embeds and indexes a document. Indexing an
// already indexed document is a no-op. A document without usable text is
// saved unindexed and is not an error.
func (uc *IndexDocumentUseCase) IndexDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.Indexed {
		return doc, nil
	}

	if strings.TrimSpace(doc.Content) == "" {
		text, err := uc.extractor.Extract(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("extract text: %w", err)
		}
		doc.Content = text
	}

	doc.Chunks = uc.buildChunks(doc)
	doc.UpdatedAt = time.Now().UTC()
	if len(doc.Chunks) == 0 {
		doc.Error = noTextError
		if err := uc.documents.SaveDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("save document: %w", err)
		}
		return doc, nil
	}

	vectors, err := uc.embed(ctx, doc.Chunks)
	if err != nil {
		return nil, err
	}
	if err := uc.vectorDB.IndexChunks(ctx, doc.Chunks, vectors); err != nil {
		return nil, fmt.Errorf("index chunks in vector db: %w", err)
	}

	doc.Indexed = true
	doc.Error = ""
	if err := uc.documents.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	if err := uc.markProjectsOutdated(ctx); err != nil {
		return nil, err
	}
	return doc, nil
}

func (uc *IndexDocumentUseCase) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	return uc.documents.GetDocument(ctx, id)
}

func (uc *IndexDocumentUseCase) ListDocuments(ctx context.Context) ([]*domain.Document, error) {
	return uc.documents.ListDocuments(ctx)
}

// ExtractText returns the text of a stored document without indexing it.
func (uc *IndexDocumentUseCase) ExtractText(ctx context.Context, documentID string) (string, error) {
	doc, err := uc.documents.GetDocument(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("fetch document by id: %w", err)
	}
	if strings.TrimSpace(doc.Content) != "" {
		return doc.Content, nil
	}
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return text, nil
}

func (uc *IndexDocumentUseCase) buildChunks(doc *domain.Document) []domain.Chunk {
	segments := uc.chunker.Split(doc.Content)
	chunks := make([]domain.Chunk, 0, len(segments))
	for _, seg := range segments {
		chunks = append(chunks, domain.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Index:      seg.Index,
			Text:       seg.Text,
			Offset:     seg.Offset,
			Overlap:    seg.Overlap,
			Metadata: domain.ChunkMetadata{
				DocumentID: doc.ID,
				ChunkIndex: seg.Index,
				Filename:   doc.Filename,
			},
		})
	}
	return chunks
}

func (uc *IndexDocumentUseCase) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	return vectors, nil
}

// markProjectsOutdated flags all-documents projects whose answers predate
// the newly indexed document.
func (uc *IndexDocumentUseCase) markProjectsOutdated(ctx context.Context) error {
	if uc.projects == nil {
		return nil
	}
	projects, err := uc.projects.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	for _, project := range projects {
		if !project.Scope.AllDocuments || len(project.Answers) == 0 {
			continue
		}
		if project.Status == domain.ProjectOutdated || !project.Status.CanTransitionTo(domain.ProjectOutdated) {
			continue
		}
		project.Status = domain.ProjectOutdated
		project.UpdatedAt = time.Now().UTC()
		if err := uc.projects.SaveProject(ctx, project); err != nil {
			return fmt.Errorf("mark project outdated: %w", err)
		}
	}
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
