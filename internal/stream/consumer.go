package stream

import (
	"context"
	"log"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/glossa/backend/internal/monitoring"
)

// Shard consumer states, exported through the shard state gauge.
const (
	stateIdle = iota
	stateSubscribing
	stateActive
	stateBackoff
)

const (
	baseRetryDelay = 2 * time.Second
	jitterFraction = 0.1
)

// Consumer drives one handler over every shard of a stream. Each shard
// gets its own goroutine holding a time-bounded subscription; on lease
// expiry the shard resubscribes strictly after its last delivered
// record, and on transient failure it backs off exponentially before
// retrying from the same continuation.
type Consumer struct {
	name          string
	streamName    string
	source        Source
	handler       Handler
	blockTimeout  time.Duration
	leaseTTL      time.Duration
	baseDelay     time.Duration
	maxRetryDelay time.Duration
	logger        *log.Logger
}

func NewConsumer(name, streamName string, source Source, handler Handler, blockTimeout, leaseTTL, maxRetryDelay time.Duration) *Consumer {
	return &Consumer{
		name:          name,
		streamName:    streamName,
		source:        source,
		handler:       handler,
		blockTimeout:  blockTimeout,
		leaseTTL:      leaseTTL,
		baseDelay:     baseRetryDelay,
		maxRetryDelay: maxRetryDelay,
		logger:        log.New(log.Writer(), "[CONSUMER] ", log.LstdFlags),
	}
}

// Run blocks until ctx is cancelled or a shard goroutine fails
// unrecoverably.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Printf("🔌 consumer %s starting on %s (%d shards)", c.name, c.streamName, c.source.Shards())
	g, ctx := errgroup.WithContext(ctx)
	for shard := 0; shard < c.source.Shards(); shard++ {
		shard := shard
		g.Go(func() error {
			c.runShard(ctx, shard)
			return nil
		})
	}
	return g.Wait()
}

func (c *Consumer) setState(shard, state int) {
	monitoring.ShardState.WithLabelValues(c.streamName, strconv.Itoa(shard)).Set(float64(state))
}

func (c *Consumer) runShard(ctx context.Context, shard int) {
	afterID := LatestID
	retryDelay := c.baseDelay
	defer c.setState(shard, stateIdle)

	for ctx.Err() == nil {
		c.setState(shard, stateSubscribing)
		leaseExpiry := time.Now().Add(c.leaseTTL)
		slog.Info("shard subscribing",
			"consumer", c.name, "stream", c.streamName, "shard", shard, "after", afterID)

		for ctx.Err() == nil && time.Now().Before(leaseExpiry) {
			records, err := c.source.Read(ctx, shard, afterID, c.blockTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.setState(shard, stateBackoff)
				c.logger.Printf("❌ shard %d read failed, retrying in %s: %v", shard, retryDelay, err)
				if !sleepCtx(ctx, jitter(retryDelay)) {
					return
				}
				retryDelay = min(retryDelay*2, c.maxRetryDelay)
				break // resubscribe from the last continuation
			}

			c.setState(shard, stateActive)
			retryDelay = c.baseDelay

			if len(records) == 0 {
				slog.Debug("shard heartbeat",
					"consumer", c.name, "stream", c.streamName, "shard", shard)
				continue
			}

			for _, rec := range records {
				if err := c.handler(ctx, rec); err != nil {
					c.logger.Printf("⚠️ shard %d handler error at %s: %v", shard, rec.ID, err)
				}
				// Advance even on handler error: delivery is
				// at-least-once across restarts, not per record.
				afterID = rec.ID
			}
		}

		if ctx.Err() == nil && !time.Now().Before(leaseExpiry) {
			slog.Info("shard lease expired, resubscribing",
				"consumer", c.name, "stream", c.streamName, "shard", shard, "after", afterID)
		}
	}
}

// jitter spreads retries by up to 10% so shards do not reconnect in
// lockstep.
func jitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(float64(d)*jitterFraction)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
