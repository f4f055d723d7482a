package escrowfakes

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/louisbranch/escrow/internal/services/escrow/transfer"
)

// Gateway records submitted transfers without executing them. Tests deliver
// outcomes themselves, which lets them hold a transfer in flight.
type Gateway struct {
	mu       sync.Mutex
	requests []transfer.Request

	// SubmitErr, when set, is returned by every Submit call and nothing is
	// recorded. Wrap it with transfer.Rejected to model a definite refusal.
	SubmitErr error
	// LostErr, when set, records the request as accepted and then returns
	// LostErr, like a provider whose response never arrived.
	LostErr error
}

func (g *Gateway) Submit(ctx context.Context, req transfer.Request) error {
	if err := ctx.Err(); err != nil {
		return transfer.Rejected(err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.SubmitErr != nil {
		return g.SubmitErr
	}
	g.requests = append(g.requests, req)
	return g.LostErr
}

// Requests returns the accepted requests in submit order.
func (g *Gateway) Requests() []transfer.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.requests)
}

// Last returns the most recent accepted request.
func (g *Gateway) Last() (transfer.Request, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.requests) == 0 {
		return transfer.Request{}, false
	}
	return g.requests[len(g.requests)-1], true
}

// Reporter records reports it receives and optionally forwards them.
type Reporter struct {
	mu      sync.Mutex
	reports []transfer.Report
	want    int
	done    chan struct{}

	Next transfer.Reporter
}

// NewReporter returns a Reporter whose Wait unblocks after n reports.
func NewReporter(n int) *Reporter {
	r := &Reporter{want: n, done: make(chan struct{})}
	if n <= 0 {
		close(r.done)
	}
	return r
}

func (r *Reporter) Report(ctx context.Context, report transfer.Report) error {
	r.mu.Lock()
	r.reports = append(r.reports, report)
	if len(r.reports) >= r.want {
		select {
		case <-r.done:
		default:
			close(r.done)
		}
	}
	next := r.Next
	r.mu.Unlock()
	if next != nil {
		return next.Report(ctx, report)
	}
	return nil
}

// Wait blocks until the expected reports arrive or timeout elapses.
func (r *Reporter) Wait(timeout time.Duration) bool {
	select {
	case <-r.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Reports returns the received reports.
func (r *Reporter) Reports() []transfer.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.reports)
}

// Clock is a controllable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock fixed at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	_ transfer.Gateway  = (*Gateway)(nil)
	_ transfer.Reporter = (*Reporter)(nil)
)
