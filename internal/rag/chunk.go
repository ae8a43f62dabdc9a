// Package rag implements the retrieval-augmented knowledge engine of
// spec.md §4.H: source scanning, chunking, provider-backed embedding and
// synthesis, a background indexer loop, and similarity-ranked query.
package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
)

// DefaultSoftTokenCap is the soft chunk-size cap named in spec.md §4.H
// ("e.g. 800 tokens"), approximated here as whitespace-separated words
// since no tokenizer is wired.
const DefaultSoftTokenCap = 800

// DefaultOverlap is the number of trailing words carried into the next
// chunk when a source must be split across a boundary.
const DefaultOverlap = 80

var headingPattern = regexp.MustCompile(`(?m)^#{1,6}\s+.+$`)
var codeFencePattern = regexp.MustCompile("(?ms)^```.*?^```")

// Candidate is one unchunked source document discovered by the scanner.
type Candidate struct {
	SourceType string
	SourceRef  string
	Text       string
}

// RawChunk is one chunk produced by Split, not yet content-hashed or
// persisted.
type RawChunk struct {
	SourceType string
	SourceRef  string
	Text       string
}

// Split chunks c.Text according to spec.md §4.H: markdown and code are
// split on heading/code-block boundaries with a soft cap and overlap,
// other text uses a sliding window.
func Split(c Candidate, softCap, overlap int) []RawChunk {
	if softCap <= 0 {
		softCap = DefaultSoftTokenCap
	}
	if overlap < 0 {
		overlap = 0
	}
	var blocks []string
	switch c.SourceType {
	case "markdown", "code":
		blocks = splitOnBoundaries(c.Text)
	default:
		blocks = []string{c.Text}
	}

	var out []RawChunk
	for _, block := range blocks {
		for _, window := range slidingWindow(block, softCap, overlap) {
			trimmed := strings.TrimSpace(window)
			if trimmed == "" {
				continue
			}
			out = append(out, RawChunk{SourceType: c.SourceType, SourceRef: c.SourceRef, Text: trimmed})
		}
	}
	return out
}

// boundary marks one heading or fenced-code-block span within a source
// document, used to split it without cutting through either construct.
type boundary struct{ start, end int }

// splitOnBoundaries breaks text at heading lines and fenced code blocks,
// keeping each boundary's own content together with the chunk it opens.
func splitOnBoundaries(text string) []string {
	var bounds []boundary
	for _, loc := range headingPattern.FindAllStringIndex(text, -1) {
		bounds = append(bounds, boundary{loc[0], loc[0]})
	}
	for _, loc := range codeFencePattern.FindAllStringIndex(text, -1) {
		bounds = append(bounds, boundary{loc[0], loc[1]})
	}
	if len(bounds) == 0 {
		return []string{text}
	}

	sort.Slice(bounds, func(i, j int) bool { return bounds[i].start < bounds[j].start })
	var blocks []string
	cursor := 0
	for i, b := range bounds {
		if b.start > cursor {
			blocks = append(blocks, text[cursor:b.start])
		}
		end := b.end
		if b.end == b.start {
			// Heading boundary: extends to the next boundary's start.
			if i+1 < len(bounds) {
				end = bounds[i+1].start
			} else {
				end = len(text)
			}
		}
		if end > cursor {
			blocks = append(blocks, text[b.start:end])
			cursor = end
		}
	}
	if cursor < len(text) {
		blocks = append(blocks, text[cursor:])
	}
	return blocks
}

// slidingWindow splits text into word-count windows of size softCap,
// each subsequent window overlapping the previous by overlap words.
func slidingWindow(text string, softCap, overlap int) []string {
	words := strings.Fields(text)
	if len(words) <= softCap {
		return []string{text}
	}
	step := softCap - overlap
	if step <= 0 {
		step = softCap
	}
	var out []string
	for start := 0; start < len(words); start += step {
		end := start + softCap
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return out
}

// ContentHash returns the content-addressing hash spec.md §4.H uses to
// deduplicate chunks by (source_ref, content_hash).
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
