// Package chunker splits document text into overlapping, offset-tracked chunks.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Chunker splits raw text into bounded, overlapping chunks at sentence
// boundaries. Chunking is deterministic and lossless at the sentence level:
// no sentence is dropped or rewritten, only whitespace is collapsed.
type Chunker struct {
	maxChars     int
	overlapChars int
	minChunkSize int
}

// New creates a chunker. overlapChars must be strictly less than maxChars,
// otherwise a closed chunk's overlap seed could never make progress.
func New(maxChars, overlapChars, minChunkSize int) (*Chunker, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("maxChars must be positive, got %d", maxChars)
	}
	if overlapChars >= maxChars {
		return nil, fmt.Errorf("overlapChars (%d) must be < maxChars (%d)", overlapChars, maxChars)
	}
	return &Chunker{
		maxChars:     maxChars,
		overlapChars: overlapChars,
		minChunkSize: minChunkSize,
	}, nil
}

// Chunk splits text into chunks for docID. When docID is empty a new one is
// generated. Empty or whitespace-only input yields no chunks. Offsets are
// character positions into the concatenated output texts, not the raw input.
func (c *Chunker) Chunk(text, docID string) []models.Chunk {
	if docID == "" {
		docID = uuid.New().String()
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}
	raw := c.slidingWindow(sentences)
	raw = c.mergeSmall(raw)

	chunks := make([]models.Chunk, 0, len(raw))
	offset := 0
	for i, t := range raw {
		length := utf8.RuneCountInString(t)
		chunks = append(chunks, models.Chunk{
			DocID:       docID,
			ChunkIndex:  i,
			Text:        t,
			OffsetStart: offset,
			OffsetEnd:   offset + length,
		})
		offset += length
	}
	return chunks
}

// splitSentences normalizes line endings, splits on blank lines into
// paragraphs, and applies boundary heuristics within each paragraph: after
// sentence-final punctuation followed by an uppercase letter, and after
// newlines followed by an uppercase letter or digit (headings, list items).
// Ambiguous abbreviations may split incorrectly; accepted tradeoff.
func splitSentences(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var sentences []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, s := range splitParagraph(para) {
			if s = strings.TrimSpace(s); s != "" {
				sentences = append(sentences, s)
			}
		}
	}
	return sentences
}

// splitParagraph scans for sentence boundaries within one paragraph.
func splitParagraph(para string) []string {
	var parts []string
	start := 0
	i := 0
	for i < len(para) {
		switch c := para[i]; {
		case c == '.' || c == '!' || c == '?':
			j := i + 1
			for j < len(para) && isSpace(para[j]) {
				j++
			}
			if j > i+1 && j < len(para) && isUpper(para[j]) {
				parts = append(parts, para[start:i+1])
				start, i = j, j
				continue
			}
			i++
		case c == '\n':
			j := i
			for j < len(para) && para[j] == '\n' {
				j++
			}
			if j < len(para) && (isUpper(para[j]) || isDigit(para[j])) {
				parts = append(parts, para[start:i])
				start, i = j, j
				continue
			}
			i = j
		default:
			i++
		}
	}
	if start < len(para) {
		parts = append(parts, para[start:])
	}
	return parts
}

// slidingWindow greedily accumulates sentences into chunks of at most
// maxChars, seeding each new chunk with a soft overlap from the previous one.
// A single sentence longer than maxChars is emitted as its own oversized
// chunk, never split mid-sentence.
func (c *Chunker) slidingWindow(sentences []string) []string {
	var chunks []string
	current := ""
	for _, sentence := range sentences {
		if len(current)+len(sentence) > c.maxChars {
			if current != "" {
				chunks = append(chunks, strings.TrimSpace(current))
			}
			if c.overlapChars > 0 {
				current = softOverlap(current, c.overlapChars)
			} else {
				current = ""
			}
		}
		current += " " + utils.CollapseWhitespace(sentence)
	}
	if s := strings.TrimSpace(current); s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

// softOverlap returns the trailing size characters of chunk, trimmed forward
// to the first word boundary so the overlap never starts mid-word.
func softOverlap(chunk string, size int) string {
	if len(chunk) <= size {
		return chunk
	}
	overlap := chunk[len(chunk)-size:]
	if idx := strings.IndexByte(overlap, ' '); idx != -1 {
		return overlap[idx+1:]
	}
	return overlap
}

// mergeSmall folds chunks shorter than minChunkSize into the following chunk.
// A trailing short fragment is absorbed into the previous chunk instead, so a
// short chunk is only ever emitted when it is the only chunk.
func (c *Chunker) mergeSmall(chunks []string) []string {
	merged := make([]string, 0, len(chunks))
	carry := ""
	for _, ch := range chunks {
		if carry != "" {
			ch = carry + " " + ch
			carry = ""
		}
		if len(ch) < c.minChunkSize {
			carry = ch
			continue
		}
		merged = append(merged, ch)
	}
	if carry != "" {
		if len(merged) > 0 {
			merged[len(merged)-1] += " " + carry
		} else {
			merged = append(merged, carry)
		}
	}
	return merged
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' }
func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }
func isDigit(b byte) bool { return b >= '0' && b <= '9' }
