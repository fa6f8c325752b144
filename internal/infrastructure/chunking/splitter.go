package chunking

import (
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
)

// DefaultSeparators are tried coarsest first: paragraphs, lines, sentences, words, runes.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter is a recursive separator splitter. Sizes are measured in runes.
// Every emitted segment is an exact slice of the input, so segments keep
// their byte offsets and consecutive segments share Overlap bytes.
type Splitter struct {
	ChunkSize  int
	Overlap    int
	Separators []string
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize:  chunkSize,
		Overlap:    overlap,
		Separators: DefaultSeparators,
	}
}

type span struct {
	start int
	end   int
	runes int
}

func (s *Splitter) Split(text string) []domain.TextSegment {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	spans := s.splitRange(text, 0, len(text), s.separators())
	out := make([]domain.TextSegment, 0, len(spans))
	prevEnd := 0
	for _, sp := range spans {
		chunk := text[sp.start:sp.end]
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		overlap := 0
		if len(out) > 0 && prevEnd > sp.start {
			overlap = min(prevEnd-sp.start, len(chunk))
		}
		out = append(out, domain.TextSegment{
			Index:   len(out),
			Text:    chunk,
			Offset:  sp.start,
			Overlap: overlap,
		})
		prevEnd = sp.end
	}
	return out
}

func (s *Splitter) separators() []string {
	if len(s.Separators) == 0 {
		return DefaultSeparators
	}
	return s.Separators
}

func (s *Splitter) splitRange(text string, start, end int, seps []string) []span {
	sep, finer := pickSeparator(text[start:end], seps)
	pieces := cut(text, start, end, sep)

	var out, fitting []span
	for _, p := range pieces {
		if p.runes <= s.ChunkSize {
			fitting = append(fitting, p)
			continue
		}
		if len(fitting) > 0 {
			out = append(out, s.merge(fitting)...)
			fitting = nil
		}
		if len(finer) == 0 {
			out = append(out, p)
			continue
		}
		out = append(out, s.splitRange(text, p.start, p.end, finer)...)
	}
	if len(fitting) > 0 {
		out = append(out, s.merge(fitting)...)
	}
	return out
}

// merge packs adjacent pieces into windows of at most ChunkSize runes,
// carrying trailing pieces of up to Overlap runes into the next window.
func (s *Splitter) merge(pieces []span) []span {
	out := make([]span, 0, len(pieces))
	window := make([]span, 0, len(pieces))
	total := 0
	for _, p := range pieces {
		if total+p.runes > s.ChunkSize && len(window) > 0 {
			out = append(out, joinSpans(window, total))
			for len(window) > 0 && (total > s.Overlap || total+p.runes > s.ChunkSize) {
				total -= window[0].runes
				window = window[1:]
			}
		}
		window = append(window, p)
		total += p.runes
	}
	if len(window) > 0 {
		out = append(out, joinSpans(window, total))
	}
	return out
}

func joinSpans(window []span, runes int) span {
	return span{start: window[0].start, end: window[len(window)-1].end, runes: runes}
}

func pickSeparator(segment string, seps []string) (string, []string) {
	for i, sep := range seps {
		if sep == "" || strings.Contains(segment, sep) {
			return sep, seps[i+1:]
		}
	}
	return "", nil
}

// cut splits text[start:end] on sep, keeping the separator at the end of
// each piece so pieces tile the range exactly.
func cut(text string, start, end int, sep string) []span {
	out := make([]span, 0, 8)
	if sep == "" {
		for pos := start; pos < end; {
			_, width := utf8.DecodeRuneInString(text[pos:end])
			out = append(out, span{start: pos, end: pos + width, runes: 1})
			pos += width
		}
		return out
	}

	for pos := start; pos < end; {
		idx := strings.Index(text[pos:end], sep)
		stop := end
		if idx >= 0 {
			stop = pos + idx + len(sep)
		}
		out = append(out, span{start: pos, end: stop, runes: utf8.RuneCountInString(text[pos:stop])})
		pos = stop
	}
	return out
}
