package hash

import (
	"context"
	"math"
	"testing"
)

func TestEmbedIsDeterministicAndNormalized(t *testing.T) {
	e := New(64)
	first, err := e.EmbedQuery(context.Background(), "Revenue grew 12% in FY2023")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	second, _ := e.EmbedQuery(context.Background(), "revenue GREW 12% in fy2023")
	if len(first) != 64 {
		t.Fatalf("expected dimension 64, got %d", len(first))
	}

	var norm float64
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("expected case-insensitive deterministic vectors")
		}
		norm += float64(first[i]) * float64(first[i])
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("expected unit norm, got %v", norm)
	}
}

func TestEmbedEmptyTextIsZeroVector(t *testing.T) {
	vectors, err := New(0).Embed(context.Background(), []string{"", "  ...  "})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 || len(vectors[0]) != DefaultDimension {
		t.Fatalf("unexpected shape: %d x %d", len(vectors), len(vectors[0]))
	}
	for _, v := range vectors[1] {
		if v != 0 {
			t.Fatalf("expected zero vector for text without tokens")
		}
	}
}

func TestSharedTokensIncreaseSimilarity(t *testing.T) {
	e := New(DefaultDimension)
	vecs, _ := e.Embed(context.Background(), []string{
		"pending litigation against the fund",
		"litigation pending in court",
		"quarterly weather summary",
	})
	if dot(vecs[0], vecs[1]) <= dot(vecs[0], vecs[2]) {
		t.Fatalf("expected overlapping texts to be closer")
	}
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
