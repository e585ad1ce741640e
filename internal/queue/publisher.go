package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Task types carried in the "type" field of a cleanup stream entry.
const (
	TaskRemove = "remove"
	TaskSweep  = "sweep"
)

type Publisher struct {
	client redis.Cmdable
	stream string
}

func NewPublisher(client redis.Cmdable, stream string) *Publisher {
	return &Publisher{client: client, stream: stream}
}

// EnqueueRemoval asks the worker to delete the images behind urls. Empty
// urls are skipped.
func (p *Publisher) EnqueueRemoval(ctx context.Context, urls ...string) error {
	for _, u := range urls {
		if u == "" {
			continue
		}
		if err := p.add(ctx, map[string]any{"type": TaskRemove, "url": u}); err != nil {
			return fmt.Errorf("enqueue removal of %s: %w", u, err)
		}
	}
	return nil
}

func (p *Publisher) EnqueueSweep(ctx context.Context) error {
	if err := p.add(ctx, map[string]any{"type": TaskSweep}); err != nil {
		return fmt.Errorf("enqueue sweep: %w", err)
	}
	return nil
}

func (p *Publisher) add(ctx context.Context, values map[string]any) error {
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Err()
}
