package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postwatcher/configs"
	"github.com/maheshrc27/postwatcher/internal/api"
	"github.com/maheshrc27/postwatcher/internal/api/handlers"
	"github.com/maheshrc27/postwatcher/internal/caption"
	job "github.com/maheshrc27/postwatcher/internal/jobs"
	"github.com/maheshrc27/postwatcher/internal/ledger"
	"github.com/maheshrc27/postwatcher/internal/logging"
	"github.com/maheshrc27/postwatcher/internal/queue"
	"github.com/maheshrc27/postwatcher/internal/repository"
	"github.com/maheshrc27/postwatcher/internal/schedule"
	"github.com/maheshrc27/postwatcher/internal/service"
	"github.com/maheshrc27/postwatcher/pkg/utils"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// watcher holds everything a pass needs plus the resources to release.
type watcher struct {
	cfg     *config.Config
	db      *sqlx.DB
	job     *job.IngestJob
	posts   repository.PostRepository
	closers []func() error
}

func (w *watcher) Close() {
	for i := len(w.closers) - 1; i >= 0; i-- {
		if err := w.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Release resource")
		}
	}
}

func setup(ctx context.Context) (*watcher, error) {
	cfg := config.LoadConfig()
	w := &watcher{cfg: cfg}

	logFile, err := logging.Init(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Warn().Err(err).Msg("Logging to console only")
	}
	w.closers = append(w.closers, logFile.Close)

	if err := cfg.Validate(); err != nil {
		w.Close()
		return nil, err
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.Environment}); err != nil {
			log.Warn().Err(err).Msg("Sentry disabled")
		} else {
			w.closers = append(w.closers, func() error {
				sentry.Flush(2 * time.Second)
				return nil
			})
		}
	}

	db, err := sqlx.Open("postgres", cfg.PostgresURI)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	w.closers = append(w.closers, db.Close)
	if err := db.PingContext(ctx); err != nil {
		w.Close()
		return nil, fmt.Errorf("database is unreachable: %w", err)
	}
	w.db = db

	assets, err := service.NewR2Service(ctx, cfg.R2)
	if err != nil {
		w.Close()
		return nil, err
	}

	captions, err := caption.NewGeminiGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.RequestsPerSecond)
	if err != nil {
		w.Close()
		return nil, err
	}
	w.closers = append(w.closers, captions.Close)

	var notifier job.DueNotifier
	if cfg.RedisURI != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisURI})
		w.closers = append(w.closers, client.Close)
		notifier = queue.NewNotifier(client)
	}

	postRepo := repository.NewPostRepository(db)
	configRepo := repository.NewConfigRepository(db)
	w.posts = postRepo

	w.job = job.NewIngestJob(
		assets,
		ledger.Load(cfg.LedgerPath),
		ledger.NewAuditLog(cfg.AuditLogPath),
		captions,
		postRepo,
		configRepo,
		schedule.NewAllocator(postRepo, cfg.Location()),
		notifier,
	)
	return w, nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the bucket until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w, err := setup(ctx)
			if err != nil {
				return err
			}
			defer w.Close()

			log.Info().Dur("interval", w.cfg.PollInterval).Str("bucket", w.cfg.R2.BucketName).Msg("Watching for uploads")

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return job.NewScheduler(w.job, w.cfg.PollInterval).Run(ctx)
			})

			if w.cfg.StatusAddr != "" {
				app := api.NewRouter(w.cfg.SecretKey, handlers.NewStatusHandler(w.job, w.posts))
				g.Go(func() error {
					log.Info().Str("addr", w.cfg.StatusAddr).Msg("Status server listening")
					return app.Listen(w.cfg.StatusAddr)
				})
				g.Go(func() error {
					<-ctx.Done()
					log.Info().Msg("Shutting down status server")
					return app.Shutdown()
				})
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info().Msg("Watcher shutdown complete")
			return nil
		},
	}
}

func onceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single poll pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer w.Close()

			res, err := w.job.RunPass(cmd.Context())
			if err != nil {
				sentry.CaptureException(err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pass %s: fetched=%d available=%d duplicates=%d scheduled=%d skipped=%t\n",
				res.ID, res.Fetched, res.Available, res.Duplicates, res.Scheduled, res.Skipped)
			return nil
		},
	}
}

func ledgerCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Print the dedup ledger watermark and counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = config.LoadConfig().LedgerPath
			}
			l := ledger.Load(path)
			fmt.Fprintf(cmd.OutOrStdout(), "path: %s\nentries: %d\nduplicates: %d\nwatermark: %s\n",
				path, l.Len(), l.Duplicates(), l.Watermark().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "ledger file (defaults to LEDGER_PATH)")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		operator string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			if cfg.SecretKey == "" {
				return errors.New("SECRET_KEY is not set, the status API is open")
			}
			token, err := utils.GenerateToken(cfg.SecretKey, operator, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "operator", "name recorded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
