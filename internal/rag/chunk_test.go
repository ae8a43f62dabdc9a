package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPlainTextSlidingWindow(t *testing.T) {
	words := make([]string, 0, 1000)
	for i := 0; i < 1000; i++ {
		words = append(words, "word")
	}
	text := strings.Join(words, " ")
	chunks := Split(Candidate{SourceType: "context", SourceRef: "ctx:1", Text: text}, 800, 80)
	require.GreaterOrEqual(t, len(chunks), 2)
	for _, c := range chunks {
		assert.NotEmpty(t, c.Text)
	}
}

func TestSplitMarkdownRespectsHeadings(t *testing.T) {
	md := "# Title\nintro text\n\n## Section One\nbody one\n\n## Section Two\nbody two\n"
	chunks := Split(Candidate{SourceType: "markdown", SourceRef: "README.md", Text: md}, 800, 80)
	require.NotEmpty(t, chunks)
	joined := ""
	for _, c := range chunks {
		joined += c.Text + "\n"
	}
	assert.Contains(t, joined, "Section One")
	assert.Contains(t, joined, "Section Two")
}

func TestSplitKeepsCodeFenceIntact(t *testing.T) {
	md := "Some text\n```go\nfunc main() {}\n```\nmore text"
	chunks := Split(Candidate{SourceType: "markdown", SourceRef: "doc.md", Text: md}, 800, 80)
	found := false
	for _, c := range chunks {
		if strings.Contains(c.Text, "func main()") {
			found = true
			assert.Contains(t, c.Text, "```")
		}
	}
	assert.True(t, found)
}

func TestContentHashIsStableAndDistinguishing(t *testing.T) {
	a := ContentHash("hello world")
	b := ContentHash("hello world")
	c := ContentHash("goodbye world")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
