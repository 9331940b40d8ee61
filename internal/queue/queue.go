package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// EnqueuePublish schedules a publish task. A zero delay runs it as soon as a
// worker is free.
func (q *Queue) EnqueuePublish(ctx context.Context, postID string, delay time.Duration) error {
	payload, err := json.Marshal(PublishPostPayload{PostID: postID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishPost, payload)
	info, err := q.client.EnqueueContext(ctx, task, asynq.ProcessIn(delay))
	if err != nil {
		log.Error().Err(err).Str("post_id", postID).Msg("enqueue publish task")
		return err
	}

	log.Info().
		Str("post_id", postID).
		Str("task_id", info.ID).
		Dur("delay", delay).
		Msg("publish task scheduled")
	return nil
}
