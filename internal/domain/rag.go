package domain

import "time"

// SourceType classifies the origin of an indexed chunk of text.
type SourceType string

const (
	SourceMarkdown SourceType = "markdown"
	SourceCode     SourceType = "code"
	SourceContext  SourceType = "context"
	SourceTask     SourceType = "task"
	SourceMessage  SourceType = "message"
)

// Chunk is a bounded, content-addressed slice of a source document.
type Chunk struct {
	ChunkID     string     `db:"chunk_id"`
	SourceType  SourceType `db:"source_type"`
	SourceRef   string     `db:"source_ref"`
	Text        string     `db:"text"`
	ContentHash string     `db:"content_hash"`
	CreatedAt   time.Time  `db:"created_at"`
}

// Embedding is the fixed-dimension vector representation of a Chunk.
type Embedding struct {
	ChunkID string
	Vector  []float32
}

// IndexerCheckpoint records the background indexer's progress per source type.
type IndexerCheckpoint struct {
	SourceType SourceType
	Cursor     string
	UpdatedAt  time.Time
}

// ScoredChunk is a Chunk returned from similarity search with its rank inputs.
type ScoredChunk struct {
	Chunk      Chunk
	Similarity float64
}

// AnswerResult is the outcome of ask_project_rag.
type AnswerResult struct {
	Answer           string
	Sources          []string
	Confidence       float64
	ContextKeysUsed  []string
	SuggestedQueries []string
	LowConfidence    bool
}
