package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	job "github.com/maheshrc27/postwatcher/internal/jobs"
	"github.com/maheshrc27/postwatcher/internal/repository"
	"github.com/maheshrc27/postwatcher/internal/transfer"
	"github.com/rs/zerolog/log"
)

const upcomingLimit = 20

type SnapshotSource interface {
	Snapshot() job.Snapshot
}

type StatusHandler struct {
	watcher SnapshotSource
	posts   repository.PostRepository
}

func NewStatusHandler(watcher SnapshotSource, posts repository.PostRepository) *StatusHandler {
	return &StatusHandler{watcher: watcher, posts: posts}
}

func (h *StatusHandler) Health(c *fiber.Ctx) error {
	return c.JSON(transfer.HealthResponse{Status: "ok"})
}

func (h *StatusHandler) GetStatus(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", upcomingLimit)
	if limit <= 0 || limit > 100 {
		limit = upcomingLimit
	}

	upcoming, err := h.posts.ListUpcoming(c.Context(), time.Now(), limit)
	if err != nil {
		log.Error().Err(err).Msg("List upcoming posts")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list upcoming posts",
		})
	}

	return c.JSON(transfer.StatusResponse{
		Watcher:  h.watcher.Snapshot(),
		Upcoming: upcoming,
	})
}
