package queue

import (
	"github.com/hibiken/asynq"
)

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID string `json:"post_id"`
}

// Queue wraps the asynq client used to hand posts to the delayed publisher.
type Queue struct {
	client *asynq.Client
}

func NewQueue(client *asynq.Client) *Queue {
	return &Queue{client: client}
}
