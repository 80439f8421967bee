package queue

import "time"

// TaskTypePostDue is enqueued for every scheduled post and becomes ready at
// the post's scheduled time. The publisher consumes it.
const TaskTypePostDue = "post:due"

type PostDuePayload struct {
	PostID        int64     `json:"post_id"`
	ImagePath     string    `json:"image_path"`
	ImageURL      string    `json:"image_url"`
	ScheduledTime time.Time `json:"scheduled_time"`
}
