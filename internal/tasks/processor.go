package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"vidtube/internal/queue"
	"vidtube/internal/storage"
)

type ImageStore interface {
	RemoveByURL(ctx context.Context, url string) error
	ListImages(ctx context.Context, cutoff time.Time) ([]storage.StoredImage, error)
}

// ReferenceLister returns every image URL still referenced by a user row.
type ReferenceLister interface {
	ImageURLs(ctx context.Context) ([]string, error)
}

type Processor struct {
	store  ImageStore
	refs   ReferenceLister
	grace  time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

type TaskPayload struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

func NewProcessor(store ImageStore, refs ReferenceLister, grace time.Duration, logger zerolog.Logger) *Processor {
	return &Processor{
		store:  store,
		refs:   refs,
		grace:  grace,
		now:    time.Now,
		logger: logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch payload.Type {
	case queue.TaskRemove:
		return p.handleRemove(ctx, payload)
	case queue.TaskSweep:
		return p.handleSweep(ctx)
	default:
		p.logger.Warn().Str("type", payload.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

func (p *Processor) handleRemove(ctx context.Context, payload TaskPayload) error {
	if payload.URL == "" {
		p.logger.Warn().Msg("remove task without url")
		return nil
	}
	err := p.store.RemoveByURL(ctx, payload.URL)
	if errors.Is(err, storage.ErrForeignURL) {
		p.logger.Warn().Str("url", payload.URL).Msg("skip removal of image outside the bucket")
		return nil
	}
	if err != nil {
		return err
	}
	p.logger.Info().Str("url", payload.URL).Msg("image removed")
	return nil
}

// handleSweep deletes images older than the grace period that no user
// references. The grace period covers uploads whose user row is still being
// written.
func (p *Processor) handleSweep(ctx context.Context) error {
	referenced, err := p.refs.ImageURLs(ctx)
	if err != nil {
		return fmt.Errorf("list referenced images: %w", err)
	}
	keep := make(map[string]struct{}, len(referenced))
	for _, u := range referenced {
		keep[u] = struct{}{}
	}

	images, err := p.store.ListImages(ctx, p.now().Add(-p.grace))
	if err != nil {
		return err
	}

	var errs []error
	removed := 0
	for _, img := range images {
		if _, ok := keep[img.URL]; ok {
			continue
		}
		if err := p.store.RemoveByURL(ctx, img.URL); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	p.logger.Info().
		Int("scanned", len(images)).
		Int("removed", removed).
		Int("failed", len(errs)).
		Msg("orphan sweep finished")
	return errors.Join(errs...)
}
