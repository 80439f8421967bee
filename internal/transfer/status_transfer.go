package transfer

import (
	job "github.com/maheshrc27/postwatcher/internal/jobs"
	"github.com/maheshrc27/postwatcher/internal/models"
)

type StatusResponse struct {
	Watcher  job.Snapshot            `json:"watcher"`
	Upcoming []*models.ScheduledPost `json:"upcoming"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
