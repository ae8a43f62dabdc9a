// Command orchestratord is the multi-agent orchestration server: it wires
// persistence, auth, the security pipeline, every tool group, the RAG
// engine, realtime fan-out, and the lifecycle-managed background loops
// into the HTTP JSON-RPC transport, then serves until signaled. The stdio
// transport (mcp.NewStdioServer) is not started by this command.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/conclave-mcp/orchestrator/internal/agents"
	"github.com/conclave-mcp/orchestrator/internal/auth"
	"github.com/conclave-mcp/orchestrator/internal/config"
	"github.com/conclave-mcp/orchestrator/internal/contextstore"
	"github.com/conclave-mcp/orchestrator/internal/domain"
	"github.com/conclave-mcp/orchestrator/internal/lifecycle"
	"github.com/conclave-mcp/orchestrator/internal/mcp"
	"github.com/conclave-mcp/orchestrator/internal/platform/database"
	"github.com/conclave-mcp/orchestrator/internal/platform/writequeue"
	"github.com/conclave-mcp/orchestrator/internal/rag"
	"github.com/conclave-mcp/orchestrator/internal/realtime"
	"github.com/conclave-mcp/orchestrator/internal/security"
	"github.com/conclave-mcp/orchestrator/internal/storage"
	"github.com/conclave-mcp/orchestrator/internal/storage/memory"
	"github.com/conclave-mcp/orchestrator/internal/storage/postgres"
	"github.com/conclave-mcp/orchestrator/internal/tasks"
	"github.com/conclave-mcp/orchestrator/internal/tools"
	"github.com/conclave-mcp/orchestrator/pkg/logger"
)

const version = "0.1.0"

func main() {
	os.Exit(run())
}

// run returns the process exit code spec.md §6 defines: 0 clean, 1
// unhandled startup error, 2 invalid config, 3 migration failure.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		return 2
	}

	log := logger.New(logger.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cfg.LogOutput})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap(ctx, cfg, log)
	if err != nil {
		if _, ok := err.(*migrationError); ok {
			log.WithField("error", err).Error("schema migration failed")
			return 3
		}
		log.WithField("error", err).Error("startup failed")
		return 1
	}

	if err := app.lifecycleMgr.Start(ctx); err != nil {
		log.WithField("error", err).Error("service startup failed")
		return 1
	}
	log.WithField("services", app.lifecycleMgr.Names()).Info("orchestratord started")

	<-ctx.Done()
	log.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.lifecycleMgr.Stop(shutdownCtx); err != nil {
		log.WithField("error", err).Error("shutdown did not complete cleanly")
		return 1
	}
	log.Info("shutdown complete")
	return 0
}

// migrationError marks a startup failure that occurred specifically while
// applying the schema, so run() can map it to exit code 3.
type migrationError struct{ err error }

func (e *migrationError) Error() string { return e.err.Error() }
func (e *migrationError) Unwrap() error { return e.err }

type application struct {
	lifecycleMgr *lifecycle.Manager
}

// bootstrap constructs every collaborator and registers them with the
// lifecycle manager in spec.md §4.J's startup order: configuration is
// already loaded by the time bootstrap runs; here we open the persistence
// pool, hydrate registries, and register the background loops and
// transport listeners as lifecycle services (nothing is started yet).
func bootstrap(ctx context.Context, cfg *config.Config, log *logger.Logger) (*application, error) {
	stores, poolCloser, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tokenReg := auth.New(stores.Tokens, stores.Audit)
	if err := tokenReg.Hydrate(ctx); err != nil {
		return nil, fmt.Errorf("hydrate tokens: %w", err)
	}
	if err := bootstrapAdmin(ctx, stores, tokenReg, cfg, log); err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	hub := realtime.NewHub(128)
	queue := writequeue.New(256)

	agentMgr := agents.New(stores, tokenReg, hub, queue, cfg.MaxWorkers*4)
	taskMgr := tasks.New(stores.Tasks, stores.Tx, queue, hub)
	ctxStore := contextstore.New(stores.Context, stores.Tx, queue, hub)

	var ragEngine *rag.Engine
	var ragIndexer *rag.Indexer
	if cfg.RAGEnabled {
		embedder := newEmbeddingProvider(cfg)
		chat := rag.NewRemoteChatProvider(cfg.ChatBaseURL, cfg.ChatAPIKey, cfg.ChatModel)
		ragEngine = rag.NewEngine(stores.RAG, embedder, chat)
		scanner := rag.NewScanner(cfg.RAGProjectRoot, stores)
		ragIndexer = rag.NewIndexer(scanner, stores.RAG, embedder, log)
	}

	registry := mcp.NewRegistry()
	tools.RegisterAgentTools(registry, agentMgr)
	tools.RegisterTaskTools(registry, taskMgr)
	tools.RegisterContextTools(registry, ctxStore)
	tools.RegisterCommunicationTools(registry, agentMgr)
	tools.RegisterFileTools(registry, agentMgr)
	tools.RegisterKnowledgeTools(registry, ragEngine)

	alertSink := buildAlertSink(cfg, log)
	inputPolicy, outputPolicy := security.PolicyBlock, security.Policy(cfg.SecuritySanitizeMode)
	if !cfg.SecurityEnabled {
		inputPolicy, outputPolicy = security.PolicyNeutralize, security.PolicyNeutralize
	}
	dispatcher := mcp.NewDispatcher(registry, tokenReg, hub, log,
		mcp.WithTimeout(time.Duration(cfg.AgentTimeoutSeconds)*time.Second),
		mcp.WithAlertSink(alertSink),
		mcp.WithSecurityPolicies(inputPolicy, outputPolicy),
	)

	promRegisterer := prometheus.DefaultRegisterer
	metrics := lifecycle.NewMetrics(promRegisterer)

	lifecycleMgr := lifecycle.NewManager()
	health := lifecycle.NewHealthChecker(version, lifecycleMgr)
	health.RegisterCheck("storage", func() error {
		_, _, err := stores.Agents.Get(context.Background(), domain.AdminAgentID)
		return err
	})
	health.WithStats(func() map[string]any {
		stats := lifecycle.RuntimeStats()
		for k, v := range lifecycle.HostStats() {
			stats[k] = v
		}
		stats["write_queue_depth"] = queue.Depth()
		for _, ch := range []string{realtime.ChannelTasks, realtime.ChannelAgents, realtime.ChannelContext, realtime.ChannelSecurity, realtime.ChannelRAG} {
			stats["subscribers_"+ch] = hub.SubscriberCount(ch)
		}
		if cfg.RAGEnabled {
			stats["rag_cycle_age_seconds"] = ragCycleAge(ctx, stores.RAG).Seconds()
		}
		return stats
	})

	router := mux.NewRouter()
	router.Handle("/health", health.Handler()).Methods(http.MethodGet)
	router.Handle("/ready", health.ReadinessHandler()).Methods(http.MethodGet)
	router.Handle("/live", lifecycle.LivenessHandler()).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.Handle("/openapi.json", lifecycle.OpenAPIHandler(registry, version)).Methods(http.MethodGet)
	router.Handle("/docs", lifecycle.DocsHandler()).Methods(http.MethodGet)
	router.Handle("/rpc", mcp.NewHTTPHandler(dispatcher, log)).Methods(http.MethodPost)
	router.Handle("/ws/{channel}", realtime.NewHandler(hub, log))

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.APIPort), Handler: router}

	registerLifecycle(lifecycleMgr, poolCloser, queue, ragIndexer, cfg, stores, tokenReg, agentMgr, log, metrics, hub, httpServer)

	return &application{lifecycleMgr: lifecycleMgr}, nil
}

type poolCloser interface {
	Close() error
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Stores, poolCloser, error) {
	if cfg.StorageBackend == "memory" {
		return memory.NewStores(), nopCloser{}, nil
	}
	pool, err := database.Open(ctx, cfg)
	if err != nil {
		return storage.Stores{}, nil, &migrationError{err: err}
	}
	return postgres.NewStores(pool.DB), pool, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newEmbeddingProvider(cfg *config.Config) rag.EmbeddingProvider {
	switch cfg.EmbeddingProvider {
	case "openai", "remote":
		return rag.NewRemoteEmbeddingProvider(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, "text-embedding-3-small", cfg.EmbeddingDimension)
	default:
		return rag.NewLocalEmbeddingProvider(cfg.EmbeddingBaseURL, cfg.EmbeddingDimension)
	}
}

func buildAlertSink(cfg *config.Config, log *logger.Logger) security.AlertSink {
	logSink := security.NewLogSink(log)
	if cfg.SecurityAlertWebhook == "" {
		return logSink
	}
	return security.NewFanoutSink(logSink, security.NewWebhookSink(cfg.SecurityAlertWebhook, 2, 10, log))
}

func ragCycleAge(ctx context.Context, store storage.RAGStore) time.Duration {
	var oldest time.Time
	for _, st := range []domain.SourceType{domain.SourceMarkdown, domain.SourceCode, domain.SourceContext, domain.SourceTask, domain.SourceMessage} {
		cp, ok, err := store.Checkpoint(ctx, st)
		if err != nil || !ok {
			continue
		}
		if oldest.IsZero() || cp.UpdatedAt.Before(oldest) {
			oldest = cp.UpdatedAt
		}
	}
	if oldest.IsZero() {
		return 0
	}
	return time.Since(oldest)
}

// bootstrapAdmin mints the process-wide admin sentinel token on first
// boot (spec.md §5: "loaded once at startup; rotation requires restart").
// If cfg.AdminToken is set it is used verbatim (for pre-provisioned
// deployments); otherwise a fresh random token is generated and logged
// once, since it is never recoverable afterward.
func bootstrapAdmin(ctx context.Context, stores storage.Stores, tokenReg *auth.Registry, cfg *config.Config, log *logger.Logger) error {
	_, ok, err := stores.Agents.Get(ctx, domain.AdminAgentID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	token := cfg.AdminToken
	if token == "" {
		token, err = tokenReg.Issue(ctx, domain.AdminAgentID, "admin")
		if err != nil {
			return err
		}
	} else {
		if err := stores.Tokens.Issue(ctx, storage.TokenRecord{Token: token, AgentID: domain.AdminAgentID, Role: "admin"}); err != nil {
			return err
		}
		if err := tokenReg.Hydrate(ctx); err != nil {
			return err
		}
	}

	now := time.Now()
	agent := domain.Agent{
		AgentID:   domain.AdminAgentID,
		Token:     token,
		Status:    domain.AgentActive,
		Role:      "admin",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := stores.Agents.Create(ctx, agent); err != nil {
		return err
	}
	log.WithField("admin_token", token).Warn("bootstrapped admin agent; this token will not be shown again")
	return nil
}

func registerLifecycle(
	mgr *lifecycle.Manager,
	pool poolCloser,
	queue *writequeue.Queue,
	ragIndexer *rag.Indexer,
	cfg *config.Config,
	stores storage.Stores,
	tokenReg *auth.Registry,
	agentMgr *agents.Manager,
	log *logger.Logger,
	metrics *lifecycle.Metrics,
	hub *realtime.Hub,
	httpServer *http.Server,
) {
	_ = mgr.Register(lifecycle.FuncService{
		ServiceName: "persistence-pool",
		StopFunc:    func(ctx context.Context) error { return pool.Close() },
	})

	_ = mgr.Register(lifecycle.FuncService{
		ServiceName: "write-queue",
		StopFunc:    func(context.Context) error { queue.Close(); return nil },
	})

	if ragIndexer != nil {
		var scheduled *cron.Cron
		_ = mgr.Register(lifecycle.FuncService{
			ServiceName: "rag-indexer",
			StartFunc: func(ctx context.Context) error {
				c, err := ragIndexer.Schedule(cfg.RAGIntervalSeconds)
				if err != nil {
					return err
				}
				scheduled = c
				return nil
			},
			StopFunc: func(ctx context.Context) error {
				if scheduled != nil {
					<-scheduled.Stop().Done()
				}
				return nil
			},
		})
	}

	sessionMonitor := lifecycle.NewSessionMonitor(agentMgr, tokenReg,
		stores, time.Duration(cfg.SessionTimeoutSeconds)*time.Second,
		time.Duration(cfg.SessionSweepIntervalSeconds)*time.Second, log, metrics)
	_ = mgr.Register(sessionMonitor)

	updater := lifecycle.NewMetricsUpdater(metrics, 15*time.Second, func(m *lifecycle.Metrics) {
		m.WriteQueueDepth.Set(float64(queue.Depth()))
		for _, ch := range []string{realtime.ChannelTasks, realtime.ChannelAgents, realtime.ChannelContext, realtime.ChannelSecurity, realtime.ChannelRAG} {
			m.Subscribers.WithLabelValues(ch).Set(float64(hub.SubscriberCount(ch)))
		}
		if ragIndexer != nil {
			m.RAGCycleAgeSecs.Set(ragCycleAge(context.Background(), stores.RAG).Seconds())
		}
		for _, name := range mgr.Names() {
			m.ServiceUp.WithLabelValues(name).Set(1)
		}
	})
	_ = mgr.Register(updater)

	_ = mgr.Register(lifecycle.FuncService{
		ServiceName: "http-listener",
		StartFunc: func(ctx context.Context) error {
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.WithField("error", err).Error("http listener stopped unexpectedly")
				}
			}()
			return nil
		},
		StopFunc: func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
	})
}
