package localfs

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

func TestSaveAndOpen(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := storage.Save(context.Background(), "doc-1_report.txt", strings.NewReader("hello")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	reader, err := storage.Open(context.Background(), "doc-1_report.txt")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reader.Close()
	raw, _ := io.ReadAll(reader)
	if string(raw) != "hello" {
		t.Fatalf("unexpected content %q", raw)
	}
}

func TestOpenMissingIsNotFound(t *testing.T) {
	storage, _ := New(t.TempDir())
	if _, err := storage.Open(context.Background(), "nope.txt"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRejectsTraversalKeys(t *testing.T) {
	storage, _ := New(t.TempDir())
	for _, key := range []string{"../etc/passwd", "a/b.txt", "", ".."} {
		if err := storage.Save(context.Background(), key, strings.NewReader("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("Save(%q): expected invalid input, got %v", key, err)
		}
	}
}
