package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/postwatcher/internal/models"
	"github.com/rs/zerolog/log"
)

type PostRepository interface {
	Create(ctx context.Context, post *models.ScheduledPost) (int64, error)
	LatestScheduledTime(ctx context.Context) (time.Time, bool, error)
	ListImagePaths(ctx context.Context) ([]string, error)
	ListUpcoming(ctx context.Context, after time.Time, limit int) ([]*models.ScheduledPost, error)
}

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.ScheduledPost) (int64, error) {
	query := `
		INSERT INTO postsdb (image_path, caption, scheduled_time, posted, image_url, dont_use_until)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowxContext(ctx, query,
		post.ImagePath, post.Caption, post.ScheduledTime, post.Posted, post.ImageURL, post.DontUseUntil,
	).Scan(&id)
	if err != nil {
		log.Error().Err(err).Str("image_path", post.ImagePath).Msg("Insert scheduled post")
		return 0, err
	}

	return id, nil
}

// LatestScheduledTime returns the furthest scheduled_time in the table; ok is
// false when the table is empty.
func (r *postRepository) LatestScheduledTime(ctx context.Context) (time.Time, bool, error) {
	query := `SELECT MAX(scheduled_time) FROM postsdb`

	var latest sql.NullTime
	if err := r.db.GetContext(ctx, &latest, query); err != nil {
		log.Error().Err(err).Msg("Read latest scheduled time")
		return time.Time{}, false, err
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return latest.Time, true, nil
}

func (r *postRepository) ListImagePaths(ctx context.Context) ([]string, error) {
	query := `SELECT image_path FROM postsdb`

	var paths []string
	if err := r.db.SelectContext(ctx, &paths, query); err != nil {
		log.Error().Err(err).Msg("List post image paths")
		return nil, err
	}
	return paths, nil
}

func (r *postRepository) ListUpcoming(ctx context.Context, after time.Time, limit int) ([]*models.ScheduledPost, error) {
	query := `
		SELECT id, image_path, caption, scheduled_time, posted, image_url, dont_use_until
		FROM postsdb
		WHERE scheduled_time > $1
		ORDER BY scheduled_time ASC
		LIMIT $2
	`

	var posts []*models.ScheduledPost
	if err := r.db.SelectContext(ctx, &posts, query, after, limit); err != nil {
		log.Error().Err(err).Msg("List upcoming posts")
		return nil, err
	}
	return posts, nil
}
