package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"vidtube/internal/config"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg redis.XMessage) error
}

// Consumer reads the cleanup stream as a member of a consumer group. Entries
// are acked only after the handler succeeds; failed entries stay pending and
// are reclaimed once they have been idle for claimInterval. An entry delivered
// maxDeliveries times is moved to the dead-letter stream and acked.
type Consumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	claimInterval time.Duration
	maxDeliveries int64
	deadLetter    string
	block         time.Duration
	retryDelay    time.Duration
	logger        zerolog.Logger
	handler       MessageHandler
}

func NewConsumer(client *redis.Client, cfg config.QueueConfig, logger zerolog.Logger, handler MessageHandler) *Consumer {
	claim := cfg.ClaimInterval
	if claim <= 0 {
		claim = 30 * time.Second
	}
	maxDeliveries := cfg.MaxDeliveries
	if maxDeliveries <= 0 {
		maxDeliveries = 5
	}
	return &Consumer{
		client:        client,
		stream:        cfg.Stream,
		group:         cfg.Group,
		consumer:      cfg.Consumer,
		claimInterval: claim,
		maxDeliveries: int64(maxDeliveries),
		deadLetter:    cfg.Stream + ":dead",
		block:         5 * time.Second,
		retryDelay:    2 * time.Second,
		logger:        logger.With().Str("stream", cfg.Stream).Str("consumer", cfg.Consumer).Logger(),
		handler:       handler,
	}
}

// EnsureGroup creates the stream and the consumer group when missing.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(c.claimInterval)
	defer ticker.Stop()

	for {
		if err := c.read(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error().Err(err).Msg("stream read error")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.claimStalled(ctx); err != nil {
				c.logger.Error().Err(err).Msg("claim stalled entries failed")
			}
		default:
		}
	}
}

func (c *Consumer) read(ctx context.Context) error {
	result, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    10,
		Block:    c.block,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	for _, stream := range result {
		c.process(ctx, stream.Messages)
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, msgs []redis.XMessage) {
	for _, msg := range msgs {
		if err := c.handler.Handle(ctx, msg); err != nil {
			c.logger.Error().
				Err(err).
				Str("message_id", msg.ID).
				Msg("handle message failed")
			continue
		}
		if err := c.client.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
			c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("ack failed")
		}
	}
}

func (c *Consumer) claimStalled(ctx context.Context) error {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream,
		Group:  c.group,
		Start:  "-",
		End:    "+",
		Count:  10,
	}).Result()
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(pending))
	for _, entry := range pending {
		if entry.Idle < c.claimInterval {
			continue
		}
		if entry.RetryCount >= c.maxDeliveries {
			if err := c.bury(ctx, entry); err != nil {
				c.logger.Error().Err(err).Str("message_id", entry.ID).Msg("dead-letter failed")
			}
			continue
		}
		ids = append(ids, entry.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	msgs, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  c.claimInterval,
		Messages: ids,
	}).Result()
	if err != nil {
		return err
	}

	c.logger.Info().Int("count", len(msgs)).Msg("reclaimed stalled entries")
	c.process(ctx, msgs)
	return nil
}

// bury copies a pending entry to the dead-letter stream and acks it so it
// leaves the pending list for good.
func (c *Consumer) bury(ctx context.Context, entry redis.XPendingExt) error {
	msgs, err := c.client.XRange(ctx, c.stream, entry.ID, entry.ID).Result()
	if err != nil {
		return fmt.Errorf("read entry: %w", err)
	}
	for _, msg := range msgs {
		values := make(map[string]any, len(msg.Values)+2)
		for k, v := range msg.Values {
			values[k] = v
		}
		values["source_id"] = msg.ID
		values["deliveries"] = entry.RetryCount
		if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.deadLetter, Values: values}).Err(); err != nil {
			return fmt.Errorf("xadd %s: %w", c.deadLetter, err)
		}
	}
	if err := c.client.XAck(ctx, c.stream, c.group, entry.ID).Err(); err != nil {
		return fmt.Errorf("ack: %w", err)
	}

	c.logger.Error().
		Str("message_id", entry.ID).
		Int64("deliveries", entry.RetryCount).
		Str("dead_letter", c.deadLetter).
		Msg("giving up on entry")
	return nil
}
