package rag

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/conclave-mcp/orchestrator/internal/storage"
)

// Scanner discovers the candidate documents the indexer will chunk and
// embed: markdown/code files under a project root, plus text derived from
// context entries, task titles/descriptions, and agent messages.
type Scanner struct {
	root   string
	stores storage.Stores
}

// NewScanner builds a Scanner rooted at root (the project directory walked
// for markdown/code sources).
func NewScanner(root string, stores storage.Stores) *Scanner {
	return &Scanner{root: root, stores: stores}
}

var codeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".java": true,
	".rs": true, ".c": true, ".cpp": true, ".rb": true, ".sh": true,
}

// WalkFiles returns every markdown/code file candidate under the project
// root. Errors reading an individual file or entering a directory are
// skipped silently, never fatal to the walk.
func (s *Scanner) WalkFiles() ([]Candidate, error) {
	var out []Candidate
	if s.root == "" {
		return out, nil
	}
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && d.Name() != "." {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		sourceType := ""
		switch {
		case ext == ".md" || ext == ".markdown":
			sourceType = "markdown"
		case codeExtensions[ext]:
			sourceType = "code"
		default:
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		out = append(out, Candidate{SourceType: sourceType, SourceRef: path, Text: string(data)})
		return nil
	})
	return out, err
}

// DerivedSources pulls text candidates from persisted context entries,
// task titles/descriptions, and agent messages, per spec.md §4.H's scope.
func (s *Scanner) DerivedSources(ctx context.Context) ([]Candidate, error) {
	var out []Candidate

	entries, err := s.stores.Context.List(ctx)
	if err == nil {
		for _, e := range entries {
			out = append(out, Candidate{
				SourceType: "context",
				SourceRef:  "context:" + e.ContextKey,
				Text:       e.Description + "\n" + toText(e.Value),
			})
		}
	}

	tasks, err := s.stores.Tasks.List(ctx)
	if err == nil {
		for _, t := range tasks {
			out = append(out, Candidate{
				SourceType: "task",
				SourceRef:  "task:" + t.TaskID,
				Text:       t.Title + "\n" + t.Description,
			})
		}
	}

	messages, err := s.stores.Messages.All(ctx)
	if err == nil {
		for _, msg := range messages {
			out = append(out, Candidate{
				SourceType: "message",
				SourceRef:  "message:" + msg.MessageID,
				Text:       msg.Payload,
			})
		}
	}

	return out, nil
}

func toText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
