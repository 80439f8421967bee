package job

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/maheshrc27/postwatcher/internal/caption"
	"github.com/maheshrc27/postwatcher/internal/models"
	"github.com/maheshrc27/postwatcher/internal/repository"
	"github.com/maheshrc27/postwatcher/internal/schedule"
	"github.com/maheshrc27/postwatcher/internal/service"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

type Ledger interface {
	Seen(id string) bool
	RecordAndClassify(asset models.Asset) (bool, error)
	Watermark() time.Time
	Len() int
	Duplicates() int
}

type AuditLog interface {
	Record(createdAt time.Time, id, url string, duplicate bool) error
}

type DueNotifier interface {
	NotifyDue(ctx context.Context, post *models.ScheduledPost) error
}

type PassResult struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Watermark  time.Time `json:"watermark"`
	Fetched    int       `json:"fetched"`
	Available  int       `json:"available"`
	Skipped    bool      `json:"skipped"`
	Duplicates int       `json:"duplicates"`
	Scheduled  int       `json:"scheduled"`
	Error      string    `json:"error,omitempty"`
}

// Snapshot is the watcher state published after every pass for readers on
// other goroutines.
type Snapshot struct {
	Watermark     time.Time             `json:"watermark"`
	LedgerEntries int                   `json:"ledger_entries"`
	Duplicates    int                   `json:"duplicates"`
	Config        *models.PostingConfig `json:"config,omitempty"`
	LastPass      *PassResult           `json:"last_pass,omitempty"`
}

type IngestJob struct {
	assets    service.AssetStore
	ledger    Ledger
	audit     AuditLog
	captions  caption.Generator
	posts     repository.PostRepository
	configs   repository.ConfigRepository
	allocator *schedule.Allocator
	notifier  DueNotifier

	mu       sync.RWMutex
	snapshot Snapshot
}

func NewIngestJob(
	assets service.AssetStore,
	ledger Ledger,
	audit AuditLog,
	captions caption.Generator,
	posts repository.PostRepository,
	configs repository.ConfigRepository,
	allocator *schedule.Allocator,
	notifier DueNotifier) *IngestJob {
	j := &IngestJob{
		assets:    assets,
		ledger:    ledger,
		audit:     audit,
		captions:  captions,
		posts:     posts,
		configs:   configs,
		allocator: allocator,
		notifier:  notifier,
	}
	j.snapshot = Snapshot{
		Watermark:     ledger.Watermark(),
		LedgerEntries: ledger.Len(),
		Duplicates:    ledger.Duplicates(),
	}
	return j
}

// RunPass polls the asset store once and schedules every novel upload found
// after the ledger watermark, oldest first.
func (j *IngestJob) RunPass(ctx context.Context) (PassResult, error) {
	id, err := gonanoid.New(10)
	if err != nil {
		return PassResult{}, err
	}
	res := PassResult{ID: id, StartedAt: time.Now()}
	logger := log.With().Str("pass_id", id).Logger()

	pc, err := j.runPass(ctx, &res)
	res.FinishedAt = time.Now()
	if err != nil {
		res.Error = err.Error()
		logger.Error().Err(err).Msg("Poll pass failed")
	} else {
		logger.Info().
			Int("fetched", res.Fetched).
			Int("available", res.Available).
			Int("duplicates", res.Duplicates).
			Int("scheduled", res.Scheduled).
			Bool("skipped", res.Skipped).
			Msg("Poll pass complete")
	}
	j.publish(res, pc)
	return res, err
}

func (j *IngestJob) runPass(ctx context.Context, res *PassResult) (*models.PostingConfig, error) {
	logger := log.With().Str("pass_id", res.ID).Logger()

	res.Watermark = j.ledger.Watermark()
	logger.Debug().Time("watermark", res.Watermark).Msg("Checking for new uploads")

	newAssets, err := j.assets.ListSince(ctx, res.Watermark)
	if err != nil {
		return nil, fmt.Errorf("fetch new uploads: %w", err)
	}
	res.Fetched = len(newAssets)

	values, err := j.configs.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch posting config: %w", err)
	}
	pc := models.ParsePostingConfig(values)

	cadence, ok := schedule.ParseCadence(pc.Frequency)
	if !ok {
		logger.Warn().Str("frequency", pc.Frequency).Msg("Unknown frequency, using daily")
	}

	available, err := j.AvailablePictures(ctx)
	if err != nil {
		return &pc, err
	}
	res.Available = available
	pc.AvailablePictures = available
	if available == 0 {
		logger.Warn().Msg("No available pictures to schedule")
		res.Skipped = true
		return &pc, nil
	}

	hours := caption.HourSet{}
	for _, asset := range newAssets {
		// An overwritten object keeps its key but gets a new timestamp.
		if j.ledger.Seen(asset.ID) {
			logger.Debug().Str("asset_id", asset.ID).Msg("Already recorded, ignoring")
			continue
		}

		duplicate, err := j.ledger.RecordAndClassify(asset)
		if err != nil {
			return &pc, fmt.Errorf("record %s in ledger: %w", asset.ID, err)
		}
		if err := j.audit.Record(asset.CreatedAt, asset.ID, asset.URL, duplicate); err != nil {
			logger.Warn().Err(err).Str("asset_id", asset.ID).Msg("Audit log write failed")
		}

		if duplicate {
			res.Duplicates++
			logger.Info().Str("asset_id", asset.ID).Str("signature", asset.Signature()).Msg("Duplicate skipped")
			continue
		}

		logger.Info().Str("asset_id", asset.ID).Msg("New image")
		if err := j.schedulePost(ctx, asset, cadence, pc.DontUseUntilDays, hours); err != nil {
			return &pc, err
		}
		res.Scheduled++
	}
	return &pc, nil
}

func (j *IngestJob) schedulePost(ctx context.Context, asset models.Asset, cadence schedule.Cadence, cooldownDays int, hours caption.HourSet) error {
	text, err := j.captions.Generate(ctx, asset.ID, hours.Sorted(), asset.URL)
	if err != nil {
		return fmt.Errorf("caption %s: %w", asset.ID, err)
	}

	captionText, hour := caption.Extract(text)
	if hours.Has(hour) {
		log.Warn().Str("asset_id", asset.ID).Int("hour", hour).Msg("Caption service reused an hour from this pass")
	}
	hours.Add(hour)

	slot, err := j.allocator.Next(ctx, cadence, hour)
	if err != nil {
		return fmt.Errorf("allocate slot for %s: %w", asset.ID, err)
	}

	post := models.ScheduledPost{
		ImagePath:     asset.ID,
		Caption:       captionText,
		ScheduledTime: slot,
		Posted:        models.PostStatusPending,
		ImageURL:      asset.URL,
		DontUseUntil:  j.allocator.Cooldown(cooldownDays),
	}
	post.ID, err = j.posts.Create(ctx, &post)
	if err != nil {
		return fmt.Errorf("insert post for %s: %w", asset.ID, err)
	}

	log.Info().Str("asset_id", asset.ID).Int64("post_id", post.ID).Time("scheduled_time", slot).Msg("Post scheduled")

	if j.notifier != nil {
		if err := j.notifier.NotifyDue(ctx, &post); err != nil {
			log.Warn().Err(err).Int64("post_id", post.ID).Msg("Due task not enqueued")
		}
	}
	return nil
}

// AvailablePictures counts upstream images not yet referenced by any post
// and writes the count back to the config table.
func (j *IngestJob) AvailablePictures(ctx context.Context) (int, error) {
	all, err := j.assets.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list all uploads: %w", err)
	}
	paths, err := j.posts.ListImagePaths(ctx)
	if err != nil {
		return 0, fmt.Errorf("list used images: %w", err)
	}

	used := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		used[p] = struct{}{}
	}
	count := 0
	for _, a := range all {
		if _, ok := used[a.ID]; !ok {
			count++
		}
	}

	if err := j.configs.Upsert(ctx, models.ConfigAvailablePictures, strconv.Itoa(count)); err != nil {
		return 0, fmt.Errorf("update %s: %w", models.ConfigAvailablePictures, err)
	}
	return count, nil
}

func (j *IngestJob) publish(res PassResult, pc *models.PostingConfig) {
	snap := Snapshot{
		Watermark:     j.ledger.Watermark(),
		LedgerEntries: j.ledger.Len(),
		Duplicates:    j.ledger.Duplicates(),
		LastPass:      &res,
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	snap.Config = j.snapshot.Config
	if pc != nil {
		snap.Config = pc
	}
	j.snapshot = snap
}

// Snapshot returns the state published by the most recent pass.
func (j *IngestJob) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.snapshot
}
