package analytics

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/related-questions/pkg/kafka"
)

// Publisher sends events to the analytics topic; *kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// Collector buffers events and publishes them from a background goroutine so
// request handlers never block on the broker. Events are dropped when the
// buffer is full.
type Collector struct {
	publisher Publisher
	eventCh   chan QuestionEvent
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

func NewCollector(publisher Publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		publisher: publisher,
		eventCh:   make(chan QuestionEvent, bufferSize),
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
}

// Start launches the publish loop. On ctx cancellation the buffer is drained
// with a background context.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues an event without blocking.
func (c *Collector) Track(event QuestionEvent) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)", "keyword", event.Keyword)
	}
}

// Close stops accepting events and waits for the loop to publish what is
// buffered. Start must have been called.
func (c *Collector) Close() {
	c.closeOnce.Do(func() { close(c.eventCh) })
	<-c.done
}

func (c *Collector) publish(ctx context.Context, event QuestionEvent) {
	if err := c.publisher.Publish(ctx, kafka.Event{Key: event.Keyword, Value: event}); err != nil {
		c.logger.Error("failed to publish analytics event", "keyword", event.Keyword, "error", err)
	}
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(context.Background(), event)
		default:
			return
		}
	}
}
