// Package chunker splits free-form text into overlapping paragraph
// windows for per-chunk graph extraction.
package chunker

import (
	"strings"
	"unicode"
)

const (
	// DefaultLinesPerSplit is the default token budget for one line.
	DefaultLinesPerSplit = 100
	// DefaultTokensPerParagraph is the default token budget for one
	// paragraph.
	DefaultTokensPerParagraph = 500

	// windowSize is the number of consecutive paragraphs per chunk;
	// windowStride is the distance between window starts, giving an
	// overlap of one paragraph.
	windowSize   = 3
	windowStride = 2
)

// Chunker splits input text into chunks. The zero value is not usable;
// use New.
type Chunker struct {
	linesPerSplit      int
	tokensPerParagraph int
}

// New creates a Chunker. Non-positive budgets fall back to defaults.
func New(linesPerSplit, tokensPerParagraph int) *Chunker {
	if linesPerSplit <= 0 {
		linesPerSplit = DefaultLinesPerSplit
	}
	if tokensPerParagraph <= 0 {
		tokensPerParagraph = DefaultTokensPerParagraph
	}
	return &Chunker{
		linesPerSplit:      linesPerSplit,
		tokensPerParagraph: tokensPerParagraph,
	}
}

// Chunk splits text into overlapping windows of three consecutive
// paragraphs with stride two. Texts of at most three paragraphs yield
// a single chunk. Duplicate windows are suppressed.
func (c *Chunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	lines := c.splitLines(text)
	paragraphs := c.groupParagraphs(lines)
	if len(paragraphs) == 0 {
		return nil
	}

	if len(paragraphs) <= windowSize {
		return []string{strings.Join(paragraphs, "\n")}
	}

	var chunks []string
	seen := make(map[string]struct{})
	for start := 0; start < len(paragraphs); start += windowStride {
		end := start + windowSize
		if end > len(paragraphs) {
			end = len(paragraphs)
		}
		chunk := strings.Join(paragraphs[start:end], "\n")
		if _, dup := seen[chunk]; dup {
			continue
		}
		seen[chunk] = struct{}{}
		chunks = append(chunks, chunk)
		if end == len(paragraphs) {
			break
		}
	}
	return chunks
}

// splitLines breaks the text into lines of at most linesPerSplit
// tokens, preferring newline and sentence boundaries over hard word
// splits.
func (c *Chunker) splitLines(text string) []string {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if CountTokens(raw) <= c.linesPerSplit {
			lines = append(lines, raw)
			continue
		}
		lines = append(lines, c.splitOversized(raw)...)
	}
	return lines
}

func (c *Chunker) splitOversized(line string) []string {
	var out []string
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			out = append(out, s)
		}
		current.Reset()
		currentTokens = 0
	}

	for _, sentence := range splitSentences(line) {
		n := CountTokens(sentence)
		if currentTokens > 0 && currentTokens+n > c.linesPerSplit {
			flush()
		}
		current.WriteString(sentence)
		currentTokens += n
	}
	flush()
	return out
}

// groupParagraphs greedily packs consecutive lines into paragraphs of
// at most tokensPerParagraph tokens. A line that alone exceeds the
// budget becomes its own paragraph.
func (c *Chunker) groupParagraphs(lines []string) []string {
	var paragraphs []string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = nil
			currentTokens = 0
		}
	}

	for _, line := range lines {
		n := CountTokens(line)
		if currentTokens > 0 && currentTokens+n > c.tokensPerParagraph {
			flush()
		}
		current = append(current, line)
		currentTokens += n
	}
	flush()
	return paragraphs
}

// splitSentences cuts text after sentence-final punctuation, keeping
// the punctuation with the preceding sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)
	for i, r := range runes {
		switch r {
		case '.', '!', '?', '。', '！', '？', ';', '；':
			sentences = append(sentences, string(runes[start:i+1]))
			start = i + 1
		}
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	if len(sentences) == 0 {
		return []string{text}
	}
	return sentences
}

// CountTokens approximates a token count: each CJK code point counts
// as one token, runs of other non-space characters count as one token
// per word.
func CountTokens(s string) int {
	count := 0
	inWord := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			inWord = false
		case r >= 0x4E00 && r <= 0x9FFF:
			count++
			inWord = false
		default:
			if !inWord {
				count++
				inWord = true
			}
		}
	}
	return count
}
