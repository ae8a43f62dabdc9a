package rag

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/conclave-mcp/orchestrator/internal/domain"
	"github.com/conclave-mcp/orchestrator/internal/storage"
	"github.com/conclave-mcp/orchestrator/pkg/logger"
)

// Indexer runs the background cycle of spec.md §4.H on a robfig/cron
// schedule, coalescing overlapping triggers with a per-cycle guard so only
// one walk ever runs at a time.
type Indexer struct {
	scanner  *Scanner
	store    storage.RAGStore
	embedder EmbeddingProvider
	log      *logger.Logger
	softCap  int
	overlap  int
	batch    int

	mu      sync.Mutex
	running bool
}

// NewIndexer builds an Indexer over scanner, persisting chunks/embeddings
// through store via embedder.
func NewIndexer(scanner *Scanner, store storage.RAGStore, embedder EmbeddingProvider, log *logger.Logger) *Indexer {
	return &Indexer{
		scanner:  scanner,
		store:    store,
		embedder: embedder,
		log:      log,
		softCap:  DefaultSoftTokenCap,
		overlap:  DefaultOverlap,
		batch:    16,
	}
}

// Schedule registers RunCycle on cron's standard schedule syntax,
// converting intervalSeconds into an "@every" spec, and starts the
// scheduler. Callers keep the returned *cron.Cron to Stop() it at
// shutdown.
func (ix *Indexer) Schedule(intervalSeconds int) (*cron.Cron, error) {
	if intervalSeconds <= 0 {
		intervalSeconds = 300
	}
	c := cron.New()
	_, err := c.AddFunc(cronEverySpec(intervalSeconds), func() {
		ix.RunCycle(context.Background())
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func cronEverySpec(seconds int) string {
	return "@every " + time.Duration(seconds*int(time.Second)).String()
}

// RunCycle executes one indexer pass. If a cycle is already running it
// returns immediately (coalescing), matching spec.md §4.H's "only one
// cycle runs at a time; overlapping triggers are coalesced".
func (ix *Indexer) RunCycle(ctx context.Context) {
	ix.mu.Lock()
	if ix.running {
		ix.mu.Unlock()
		return
	}
	ix.running = true
	ix.mu.Unlock()
	defer func() {
		ix.mu.Lock()
		ix.running = false
		ix.mu.Unlock()
	}()

	candidates, err := ix.scanner.WalkFiles()
	if err != nil {
		ix.log.WithField("error", err).Warn("rag indexer: file walk failed, continuing with derived sources")
	}
	derived, err := ix.scanner.DerivedSources(ctx)
	if err != nil {
		ix.log.WithField("error", err).Warn("rag indexer: derived source scan failed")
	}
	candidates = append(candidates, derived...)

	existing, err := ix.store.AllChunks(ctx)
	if err != nil {
		ix.log.WithField("error", err).Error("rag indexer: cannot load existing chunks, skipping cycle")
		return
	}
	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[c.SourceRef+"|"+c.ContentHash] = true
	}

	var pending []RawChunk
	for _, cand := range candidates {
		for _, raw := range Split(cand, ix.softCap, ix.overlap) {
			if seen[raw.SourceRef+"|"+ContentHash(raw.Text)] {
				continue
			}
			pending = append(pending, raw)
		}
	}

	for start := 0; start < len(pending); start += ix.batch {
		end := start + ix.batch
		if end > len(pending) {
			end = len(pending)
		}
		if err := ix.indexBatch(ctx, pending[start:end]); err != nil {
			ix.log.WithField("error", err).Warn("rag indexer: batch failed, will retry next cycle")
			return
		}
	}

	for _, sourceType := range []domain.SourceType{domain.SourceMarkdown, domain.SourceCode, domain.SourceContext, domain.SourceTask, domain.SourceMessage} {
		_ = ix.store.SaveCheckpoint(ctx, domain.IndexerCheckpoint{SourceType: sourceType, UpdatedAt: time.Now()})
	}
}

func (ix *Indexer) indexBatch(ctx context.Context, chunks []RawChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	for i, raw := range chunks {
		if i >= len(vectors) || len(vectors[i]) != ix.embedder.Dimension() {
			ix.log.WithField("source_ref", raw.SourceRef).Warn("rag indexer: embedding has wrong dimension, skipping chunk")
			continue
		}
		chunk := domain.Chunk{
			ChunkID:     uuid.NewString(),
			SourceType:  domain.SourceType(raw.SourceType),
			SourceRef:   raw.SourceRef,
			Text:        raw.Text,
			ContentHash: ContentHash(raw.Text),
			CreatedAt:   time.Now(),
		}
		if err := ix.store.PutChunk(ctx, chunk); err != nil {
			return err
		}
		if err := ix.store.PutEmbedding(ctx, domain.Embedding{ChunkID: chunk.ChunkID, Vector: vectors[i]}); err != nil {
			return err
		}
	}
	return nil
}
