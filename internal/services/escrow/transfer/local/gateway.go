// Package local provides an in-process transfer gateway. Transfers run on a
// bounded worker pool after an optional delay and always succeed unless the
// destination is configured to fail. It backs development deployments and
// end-to-end tests.
package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/escrow/internal/services/escrow/domain/ledger"
	"github.com/louisbranch/escrow/internal/services/escrow/transfer"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

const defaultWorkers = 8

// ErrNotBound indicates Submit ran before a reporter was bound.
var ErrNotBound = errors.New("local transfer gateway has no reporter")

// Gateway executes transfers asynchronously and reports each outcome once.
type Gateway struct {
	pool    *ants.Pool
	delay   time.Duration
	failing map[ledger.AccountID]struct{}
	logger  *zap.Logger

	mu       sync.RWMutex
	reporter transfer.Reporter

	inflight sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

type options struct {
	workers  int
	delay    time.Duration
	failing  []ledger.AccountID
	logger   *zap.Logger
	reporter transfer.Reporter
}

// Option customizes a Gateway.
type Option func(*options)

// WithWorkers bounds concurrent transfers. Submits beyond the bound fail
// instead of queueing.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithDelay holds each transfer before reporting its outcome.
func WithDelay(d time.Duration) Option {
	return func(o *options) { o.delay = d }
}

// WithFailingDestinations makes transfers to these accounts report failure.
func WithFailingDestinations(accounts ...ledger.AccountID) Option {
	return func(o *options) { o.failing = append(o.failing, accounts...) }
}

// WithLogger sets the logger for delivery problems.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithReporter binds the reporter at construction.
func WithReporter(r transfer.Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// New starts a Gateway. Close releases its pool.
func New(opts ...Option) (*Gateway, error) {
	cfg := options{workers: defaultWorkers}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers <= 0 {
		cfg.workers = defaultWorkers
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	pool, err := ants.NewPool(cfg.workers,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			cfg.logger.Error("local transfer worker panic", zap.Any("panic", p))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create transfer pool: %w", err)
	}

	failing := make(map[ledger.AccountID]struct{}, len(cfg.failing))
	for _, account := range cfg.failing {
		if account = ledger.NewAccountID(account.String()); !account.IsZero() {
			failing[account] = struct{}{}
		}
	}
	return &Gateway{
		pool:     pool,
		delay:    cfg.delay,
		failing:  failing,
		logger:   cfg.logger,
		reporter: cfg.reporter,
		stop:     make(chan struct{}),
	}, nil
}

// ParseDestinations splits a comma-separated account list.
func ParseDestinations(value string) []ledger.AccountID {
	var out []ledger.AccountID
	for _, part := range strings.Split(value, ",") {
		if account := ledger.NewAccountID(part); !account.IsZero() {
			out = append(out, account)
		}
	}
	return out
}

// Bind sets the reporter that receives outcomes.
func (g *Gateway) Bind(r transfer.Reporter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reporter = r
}

// Submit queues req on the pool. Every error it returns is a rejection:
// nothing was queued.
func (g *Gateway) Submit(ctx context.Context, req transfer.Request) error {
	if err := ctx.Err(); err != nil {
		return transfer.Rejected(err)
	}
	if err := req.Validate(); err != nil {
		return transfer.Rejected(err)
	}
	reporter := g.boundReporter()
	if reporter == nil {
		return transfer.Rejected(ErrNotBound)
	}

	g.inflight.Add(1)
	err := g.pool.Submit(func() {
		defer g.inflight.Done()
		g.execute(reporter, req)
	})
	if err != nil {
		g.inflight.Done()
		return transfer.Rejected(fmt.Errorf("queue transfer %s: %w", req.ID, err))
	}
	g.logger.Debug("local transfer queued",
		zap.String("transfer_id", req.ID),
		zap.Int("running", g.Running()),
	)
	return nil
}

func (g *Gateway) execute(reporter transfer.Reporter, req transfer.Request) {
	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-g.stop:
			// Closing with transfers in flight leaves them pending, the same as
			// a provider that never reports.
			g.logger.Warn("local transfer abandoned on shutdown", zap.String("transfer_id", req.ID))
			return
		}
	}

	outcome := transfer.Outcome{Success: true, Reference: "local-" + req.ID}
	if _, fail := g.failing[req.Destination]; fail {
		outcome = transfer.Outcome{Success: false, Reason: "destination " + req.Destination.String() + " rejected the transfer"}
	}
	report := transfer.Report{Request: req, Outcomes: []transfer.Outcome{outcome}}
	if err := reporter.Report(context.Background(), report); err != nil {
		g.logger.Error("local transfer report rejected",
			zap.String("transfer_id", req.ID),
			zap.String("kind", string(req.Kind)),
			zap.Error(err),
		)
	}
}

func (g *Gateway) boundReporter() transfer.Reporter {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.reporter
}

// Running reports how many transfers are executing.
func (g *Gateway) Running() int {
	return g.pool.Running()
}

// Close stops pending delays and waits for running transfers up to ctx.
func (g *Gateway) Close(ctx context.Context) error {
	g.stopOnce.Do(func() { close(g.stop) })
	done := make(chan struct{})
	go func() {
		g.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		g.pool.Release()
		return ctx.Err()
	}
	g.pool.Release()
	return nil
}

var _ transfer.Gateway = (*Gateway)(nil)
