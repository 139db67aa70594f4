package knowledge

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// DefaultSearchLimit is the number of snippets retrieved per query.
const DefaultSearchLimit = 3

// Availability describes whether the retriever serves live search results
// or the fixed fallback set.
type Availability int32

const (
	// Unconfigured means no backend or embedder was provided; the
	// retriever serves fallback snippets only.
	Unconfigured Availability = iota
	// Available means the vector backend answered setup and live search
	// is in effect.
	Available
	// Degraded means setup against the backend failed; the retriever
	// serves fallback snippets for the rest of the process lifetime.
	Degraded
)

// String returns the availability label used in logs and the health report.
func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case Degraded:
		return "degraded"
	default:
		return "unconfigured"
	}
}

// Embedder turns text into an embedding vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Backend is the vector store surface the retriever depends on.
type Backend interface {
	Setup(ctx context.Context) error
	Search(ctx context.Context, vector []float32, limit int) ([]Snippet, error)
}

// RetrieverOpts holds configuration options for the retriever.
type RetrieverOpts struct {
	Limit int
}

// RetrieverOption defines a configuration option for the retriever.
type RetrieverOption func(*RetrieverOpts)

// WithSearchLimit overrides the number of snippets returned per query.
func WithSearchLimit(limit int) RetrieverOption {
	return func(o *RetrieverOpts) {
		o.Limit = limit
	}
}

// Retriever answers snippet queries, serving live vector search results
// when the backend is healthy and the fixed fallback set otherwise. A
// result set is always entirely live or entirely fallback, never a mix.
type Retriever struct {
	backend      Backend
	embedder     Embedder
	limit        int
	availability atomic.Int32
}

// NewRetriever creates a retriever over the given backend and embedder.
// Either may be nil, in which case the retriever stays unconfigured and
// serves fallback snippets. Call Setup before first use.
func NewRetriever(backend Backend, embedder Embedder, opts ...RetrieverOption) *Retriever {
	cfg := RetrieverOpts{Limit: DefaultSearchLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultSearchLimit
	}
	return &Retriever{backend: backend, embedder: embedder, limit: cfg.Limit}
}

// Setup probes the vector backend and fixes the retriever's availability.
// A failed probe marks the retriever degraded for the process lifetime;
// the service keeps answering with fallback snippets.
func (r *Retriever) Setup(ctx context.Context) {
	if r.backend == nil || r.embedder == nil {
		r.availability.Store(int32(Unconfigured))
		slog.Warn("Retriever.Setup: knowledge base not configured, serving fallback snippets")
		return
	}
	if err := r.backend.Setup(ctx); err != nil {
		r.availability.Store(int32(Degraded))
		slog.Warn("Retriever.Setup: knowledge base unavailable, serving fallback snippets", "error", err)
		return
	}
	r.availability.Store(int32(Available))
	slog.Info("Retriever.Setup: knowledge base ready", "limit", r.limit)
}

// Availability reports the current retrieval mode.
func (r *Retriever) Availability() Availability {
	return Availability(r.availability.Load())
}

// Search returns context snippets relevant to the query. It never returns
// an error: any upstream failure yields the fallback set so reply
// composition can proceed.
func (r *Retriever) Search(ctx context.Context, query string) []Snippet {
	if r.Availability() != Available {
		return FallbackSnippets()
	}
	vec, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		slog.Warn("Retriever.Search: embedding failed, serving fallback snippets", "error", err)
		return FallbackSnippets()
	}
	hits, err := r.backend.Search(ctx, vec, r.limit)
	if err != nil {
		slog.Warn("Retriever.Search: vector search failed, serving fallback snippets", "error", err)
		return FallbackSnippets()
	}
	slog.Debug("Retriever.Search: live results", "count", len(hits))
	return hits
}
