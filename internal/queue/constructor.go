package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postwatcher/internal/models"
	"github.com/rs/zerolog/log"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier hands scheduled posts to the publisher through asynq.
type Notifier struct {
	client enqueuer
}

func NewNotifier(client *asynq.Client) *Notifier {
	return &Notifier{client: client}
}

// NotifyDue enqueues a post:due task processed at the post's scheduled time.
// The task id is derived from the post id so a repeated call is rejected by
// the broker instead of double-publishing.
func (n *Notifier) NotifyDue(ctx context.Context, post *models.ScheduledPost) error {
	payload, err := json.Marshal(PostDuePayload{
		PostID:        post.ID,
		ImagePath:     post.ImagePath,
		ImageURL:      post.ImageURL,
		ScheduledTime: post.ScheduledTime,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePostDue, payload)
	info, err := n.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(post.ScheduledTime),
		asynq.TaskID(fmt.Sprintf("post:%d", post.ID)),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s for post %d: %w", TaskTypePostDue, post.ID, err)
	}

	log.Info().Int64("post_id", post.ID).Str("task_id", info.ID).Time("process_at", post.ScheduledTime).Msg("Due task scheduled")
	return nil
}
