package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/postwatcher/internal/models"
	"github.com/rs/zerolog/log"
)

type ConfigRepository interface {
	GetAll(ctx context.Context) (map[string]string, error)
	Upsert(ctx context.Context, name, value string) error
}

type configRepository struct {
	db *sqlx.DB
}

func NewConfigRepository(db *sqlx.DB) ConfigRepository {
	return &configRepository{db: db}
}

func (r *configRepository) GetAll(ctx context.Context) (map[string]string, error) {
	query := `SELECT config_name, config_value FROM config`

	var entries []models.ConfigEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		log.Error().Err(err).Msg("Read posting config")
		return nil, err
	}

	values := make(map[string]string, len(entries))
	for _, e := range entries {
		values[e.Name] = e.Value
	}
	return values, nil
}

func (r *configRepository) Upsert(ctx context.Context, name, value string) error {
	query := `
		INSERT INTO config (config_name, config_value)
		VALUES ($1, $2)
		ON CONFLICT (config_name) DO UPDATE
		SET config_value = EXCLUDED.config_value
	`
	if _, err := r.db.ExecContext(ctx, query, name, value); err != nil {
		log.Error().Err(err).Str("config_name", name).Msg("Upsert config")
		return err
	}
	return nil
}
