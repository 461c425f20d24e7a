package registration

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/apierr"
)

// ErrNotConfigured is reported when the platform push runtime is not
// available, so no device token can ever be produced.
var ErrNotConfigured = apierr.New(apierr.CodePushNotConfigured,
	"push runtime is not configured")

// TokenSource is the external capability that produces the opaque
// device-registration token, asynchronously.
type TokenSource interface {
	DeviceToken(ctx context.Context, fn func(token string, err error))
}

// Callback receives the outcome of a registration sequence. Exactly
// one of token/err is meaningful.
type Callback func(token string, err error)

// Sequence is the in-flight work: obtain a device token and save the
// installation. It must call done exactly once.
type Sequence func(ctx context.Context, done func(token string, err error))

// Coordinator guarantees at most one registration sequence in flight.
// The first Acquire starts the sequence; acquires arriving while it
// runs are queued and replayed, in FIFO order, with the identical
// outcome. A nil queue means idle.
type Coordinator struct {
	run Sequence
	log *slog.Logger

	mu    sync.Mutex
	queue []Callback
}

func NewCoordinator(run Sequence, log *slog.Logger) *Coordinator {
	return &Coordinator{run: run, log: log}
}

// Acquire requests the registration outcome. cb fires exactly once,
// either with the result of the sequence started here or with the
// result of the sequence already in flight.
func (c *Coordinator) Acquire(ctx context.Context, cb Callback) {
	c.mu.Lock()
	if c.queue != nil {
		c.queue = append(c.queue, cb)
		queued := len(c.queue)
		c.mu.Unlock()
		c.log.Debug("registration in progress, queued caller", "queued", queued)
		return
	}
	c.queue = []Callback{cb}
	c.mu.Unlock()

	seqID := uuid.NewString()
	c.log.Debug("starting registration sequence", "sequenceId", seqID)

	if c.run == nil {
		c.completeAll("", ErrNotConfigured)
		return
	}
	c.run(ctx, func(token string, err error) {
		if err != nil {
			c.log.Warn("registration sequence failed",
				"sequenceId", seqID, "error", err)
		} else {
			c.log.Debug("registration sequence finished", "sequenceId", seqID)
		}
		c.completeAll(token, err)
	})
}

// completeAll drains the queue in FIFO order, invoking every callback
// with the same outcome, then returns the coordinator to idle.
func (c *Coordinator) completeAll(token string, err error) {
	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, cb := range queue {
		cb(token, err)
	}
}

// InProgress reports whether a sequence is currently running.
func (c *Coordinator) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue != nil
}
