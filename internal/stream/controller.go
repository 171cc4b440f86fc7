package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/revuehq/revue-api/internal/activity"
	"github.com/revuehq/revue-api/internal/models"
)

const defaultFlushInterval = 100 * time.Millisecond

// PlanSource fetches the chunk plan for an item.
type PlanSource interface {
	Plan(ctx context.Context, itemID string) (*models.ChunkPlan, error)
}

type activitySink interface {
	Record(entry activity.Entry)
}

// Controller drives a simulated token stream for one item. Chunks are
// paced by the plan's delay and coalesced through a Buffer that a
// periodic timer flushes into the observable text, so render cadence is
// independent of production cadence. Cancellation is cooperative: the
// emission loop checks it at iteration boundaries, so a chunk may still
// land after cancel is requested.
type Controller struct {
	itemID     string
	source     PlanSource
	activity   activitySink
	logger     *zap.Logger
	flushEvery time.Duration

	mu        sync.Mutex
	buf       Buffer
	text      string
	streaming bool
	complete  bool
	err       error
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewController builds a controller for the given item.
func NewController(itemID string, source PlanSource, sink activitySink, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		itemID:     itemID,
		source:     source,
		activity:   sink,
		logger:     logger,
		flushEvery: defaultFlushInterval,
	}
}

// Start resets session state and begins streaming. The STREAM_STARTED
// audit event is recorded before the chunk plan is fetched. A start
// while already streaming silently stops the previous session first.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.streaming {
		c.stopLocked()
	}
	c.text = ""
	c.complete = false
	c.err = nil
	c.buf.Flush()
	c.streaming = true

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	c.activity.Record(activity.Entry{
		Action:   models.AuditActionStreamStarted,
		TargetID: &c.itemID,
	})

	go c.run(runCtx, done)
}

// Cancel stops an in-flight stream, keeping any buffered partial text
// visible. The STREAM_CANCELLED audit event is recorded before the loop
// observes the cancellation, so the log reflects user intent. Calling
// Cancel when not streaming is a no-op and records nothing.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if !c.streaming {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	c.activity.Record(activity.Entry{
		Action:   models.AuditActionStreamCancelled,
		TargetID: &c.itemID,
	})

	cancel()
	<-done
}

// Reset cancels any active stream and clears text, completion, and
// error state.
func (c *Controller) Reset() {
	c.Cancel()
	c.mu.Lock()
	c.text = ""
	c.complete = false
	c.err = nil
	c.buf.Flush()
	c.mu.Unlock()
}

// Close tears the session down without recording a cancel event. It
// must be called when the owning view goes away so no timer or loop is
// leaked.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()
}

// Text returns the observable streamed text.
func (c *Controller) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// IsStreaming reports whether a stream is in flight.
func (c *Controller) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// IsComplete reports whether the last stream ran to completion.
func (c *Controller) IsComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.complete
}

// Err returns the last streaming error. User cancellation is not an
// error.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		c.mu.Lock()
		c.streaming = false
		c.mu.Unlock()
	}()

	plan, err := c.source.Plan(ctx, c.itemID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			c.logger.Warn("chunk plan fetch failed",
				zap.String("item_id", c.itemID),
				zap.Error(err))
		}
		return
	}

	delay := time.Duration(plan.DelayMs) * time.Millisecond

	stopFlush := make(chan struct{})
	var flushWG sync.WaitGroup
	flushWG.Add(1)
	go func() {
		defer flushWG.Done()
		ticker := time.NewTicker(c.flushEvery)
		defer ticker.Stop()
		for {
			select {
			case <-stopFlush:
				return
			case <-ticker.C:
				c.flushToText()
			}
		}
	}()

	cancelled := false
	for _, chunk := range plan.Chunks {
		// Cancellation is observed here, at the iteration boundary.
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		c.mu.Lock()
		c.buf.Append(chunk)
		c.mu.Unlock()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	close(stopFlush)
	flushWG.Wait()

	// Flush the remainder so partial text stays visible on cancel.
	c.flushToText()

	if !cancelled && ctx.Err() == nil {
		c.mu.Lock()
		c.complete = true
		c.mu.Unlock()
	}
}

func (c *Controller) flushToText() {
	c.mu.Lock()
	if chunk := c.buf.Flush(); chunk != "" {
		c.text += chunk
	}
	c.mu.Unlock()
}

// stopLocked cancels the active session and waits for the loop to exit.
// Callers must hold c.mu.
func (c *Controller) stopLocked() {
	if c.cancel == nil {
		return
	}
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()
	cancel()
	if done != nil {
		<-done
	}
	c.mu.Lock()
}
