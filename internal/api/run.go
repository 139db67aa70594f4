package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/clienterra/leadline/internal/flow"
	"github.com/clienterra/leadline/internal/genai"
	"github.com/clienterra/leadline/internal/handoff"
	"github.com/clienterra/leadline/internal/knowledge"
	"github.com/clienterra/leadline/internal/messaging"
	"github.com/clienterra/leadline/internal/store"
)

// DefaultAddr is the default API listen address.
const DefaultAddr = ":8080"

const shutdownTimeout = 10 * time.Second

// Opts holds configuration options for running the service.
type Opts struct {
	Addr          string
	StateDSN      string
	KnowledgeDSN  string
	Workers       int
	SeedKnowledge bool
}

// Option defines a configuration option for running the service.
type Option func(*Opts)

// WithAddr sets the API listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithStateDSN sets the conversation state database DSN. An empty DSN
// selects the in-memory store.
func WithStateDSN(dsn string) Option {
	return func(o *Opts) {
		o.StateDSN = dsn
	}
}

// WithKnowledgeDSN sets the knowledge base DSN. An empty DSN leaves the
// retriever unconfigured.
func WithKnowledgeDSN(dsn string) Option {
	return func(o *Opts) {
		o.KnowledgeDSN = dsn
	}
}

// WithWorkers sets the event processor pool size.
func WithWorkers(n int) Option {
	return func(o *Opts) {
		o.Workers = n
	}
}

// WithSeedKnowledge loads the default snippets into an empty knowledge
// base at startup.
func WithSeedKnowledge(seed bool) Option {
	return func(o *Opts) {
		o.SeedKnowledge = seed
	}
}

// unavailableBackend stands in for a knowledge store that could not be
// opened, so the retriever lands in degraded mode rather than crashing.
type unavailableBackend struct {
	err error
}

func (b unavailableBackend) Setup(ctx context.Context) error {
	return b.err
}

func (b unavailableBackend) Search(ctx context.Context, vector []float32, limit int) ([]knowledge.Snippet, error) {
	return nil, b.err
}

// Run assembles the service and blocks until the context is cancelled.
func Run(ctx context.Context, genaiOpts []genai.Option, handoffOpts []handoff.Option, opts ...Option) error {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}

	st, err := openStateStore(cfg.StateDSN)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer st.Close()

	genaiClient, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize GenAI client: %w", err)
	}

	retriever, knowledgeStore := buildRetriever(cfg, genaiClient)
	if knowledgeStore != nil {
		defer knowledgeStore.Close()
	}
	retriever.Setup(ctx)
	if cfg.SeedKnowledge && knowledgeStore != nil && retriever.Availability() == knowledge.Available {
		if err := seedKnowledge(ctx, knowledgeStore, genaiClient); err != nil {
			slog.Warn("Run: knowledge seeding failed", "error", err)
		}
	}

	dispatcher := handoff.NewDispatcher(handoffOpts...)
	if !dispatcher.Configured() {
		slog.Warn("Run: no handoff endpoint configured, handoffs will be skipped")
	}

	orchestrator := flow.NewOrchestrator(st, retriever, flow.NewResponder(genaiClient), dispatcher)

	channel := messaging.NewChannelService()
	processor := messaging.NewProcessor(channel, orchestrator, messaging.WithWorkers(cfg.Workers))
	procCtx, cancelProc := context.WithCancel(context.Background())
	defer cancelProc()
	processor.Start(procCtx)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: NewServer(st, orchestrator, retriever, channel),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Run: API listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Run: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Run: server shutdown failed", "error", err)
	}
	cancelProc()
	processor.Wait()
	return nil
}

// openStateStore picks the storage backend from the DSN: Postgres,
// SQLite, or in-memory when no DSN is set.
func openStateStore(dsn string) (store.Store, error) {
	if dsn == "" {
		slog.Warn("openStateStore: no DSN configured, state is in-memory only")
		return store.NewInMemoryStore(), nil
	}
	switch store.DetectDSNType(dsn) {
	case "postgres":
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	default:
		return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
	}
}

func buildRetriever(cfg Opts, embedder knowledge.Embedder) (*knowledge.Retriever, *knowledge.Store) {
	if cfg.KnowledgeDSN == "" {
		return knowledge.NewRetriever(nil, nil), nil
	}
	ks, err := knowledge.NewStore(knowledge.WithDSN(cfg.KnowledgeDSN))
	if err != nil {
		slog.Warn("buildRetriever: knowledge store unavailable", "error", err)
		return knowledge.NewRetriever(unavailableBackend{err: err}, embedder), nil
	}
	return knowledge.NewRetriever(ks, embedder), ks
}

func seedKnowledge(ctx context.Context, ks *knowledge.Store, embedder knowledge.Embedder) error {
	n, err := ks.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Debug("seedKnowledge: knowledge base already populated", "count", n)
		return nil
	}
	slog.Info("seedKnowledge: loading default snippets", "count", len(knowledge.DefaultSnippets))
	return ks.Seed(ctx, embedder, knowledge.DefaultSnippets)
}
