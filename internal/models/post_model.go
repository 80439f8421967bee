package models

import "time"

type ScheduledPost struct {
	ID            int64     `db:"id" json:"id"`
	ImagePath     string    `db:"image_path" json:"image_path"`
	Caption       string    `db:"caption" json:"caption"`
	ScheduledTime time.Time `db:"scheduled_time" json:"scheduled_time"`
	Posted        string    `db:"posted" json:"posted"` // Pending until the publisher picks it up
	ImageURL      string    `db:"image_url" json:"image_url"`
	DontUseUntil  time.Time `db:"dont_use_until" json:"dont_use_until"`
}

const PostStatusPending = "Pending"
