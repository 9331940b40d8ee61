package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/postdeckhq/postdeck/internal/models"
	"github.com/postdeckhq/postdeck/internal/service"
)

// Worker executes queued publish tasks against the fan-out service.
type Worker struct {
	publisher service.PublishService
}

func NewWorker(publisher service.PublishService) *Worker {
	return &Worker{publisher: publisher}
}

func (w *Worker) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode publish payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.PostID == "" {
		return fmt.Errorf("publish payload has no post id: %w", asynq.SkipRetry)
	}

	results, err := w.publisher.Publish(ctx, payload.PostID)
	if err != nil {
		// The post went away between scheduling and execution. Nothing
		// left to do, so the task must not retry.
		if errors.Is(err, service.ErrPostNotFound) {
			log.Warn().Str("post_id", payload.PostID).Msg("scheduled post no longer exists")
			return nil
		}
		return err
	}

	published := 0
	for _, r := range results {
		if r.Status == models.ResultPublished {
			published++
		}
	}
	log.Info().
		Str("post_id", payload.PostID).
		Int("published", published).
		Int("failed", len(results)-published).
		Msg("scheduled publish finished")
	return nil
}
