package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/clienterra/leadline/internal/models"
)

// DefaultWorkers is the number of concurrent event handlers. Per-client
// ordering is enforced downstream by the flow layer's client locks.
const DefaultWorkers = 4

// EventHandler processes one inbound event and returns the reply to send,
// or an empty string for no reply.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev models.InboundEvent) (string, error)
}

// ProcessorOpts holds configuration options for the processor.
type ProcessorOpts struct {
	Workers int
}

// ProcessorOption defines a configuration option for the processor.
type ProcessorOption func(*ProcessorOpts)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) ProcessorOption {
	return func(o *ProcessorOpts) {
		o.Workers = n
	}
}

// Processor drains a Service's event stream through a worker pool,
// passing each event to the handler and sending any reply back through
// the service.
type Processor struct {
	service Service
	handler EventHandler
	workers int
	wg      sync.WaitGroup
}

// NewProcessor creates a processor over the given service and handler.
func NewProcessor(service Service, handler EventHandler, opts ...ProcessorOption) *Processor {
	cfg := ProcessorOpts{Workers: DefaultWorkers}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Processor{service: service, handler: handler, workers: cfg.Workers}
}

// Start launches the worker pool. Workers exit when the context is
// cancelled or the event channel closes.
func (p *Processor) Start(ctx context.Context) {
	slog.Info("Processor.Start: launching workers", "workers", p.workers)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

// Wait blocks until all workers have exited.
func (p *Processor) Wait() {
	p.wg.Wait()
}

func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-p.service.Events():
			if !ok {
				return
			}
			p.process(ctx, ev)
		}
	}
}

func (p *Processor) process(ctx context.Context, ev models.InboundEvent) {
	reply, err := p.handler.HandleEvent(ctx, ev)
	if err != nil {
		slog.Error("Processor.process: event rejected", "error", err, "external_id", ev.User.ID, "message_id", ev.MessageID)
		return
	}
	if reply == "" {
		return
	}
	if err := p.service.SendMessage(ctx, ev.User.ID, reply); err != nil {
		slog.Error("Processor.process: failed to send reply", "error", err, "external_id", ev.User.ID)
	}
}
