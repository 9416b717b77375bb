// Command runner advances a case through the full progression pipeline.
//
// Usage: runner <customer-email>
//
// The run is idempotent: stages the case already reached are skipped, and a
// rerun after a mid-run failure resumes at the first unreached stage. Exit
// code 0 on success, 1 on any fatal error.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"caseflow/casefile"
	"caseflow/db"
	"caseflow/notify"
	"caseflow/pipeline"
	"caseflow/timeline"
)

type config struct {
	DatabaseURL       string        `env:"DATABASE_URL,required"`
	PortalBaseURL     string        `env:"PORTAL_BASE_URL" envDefault:"https://portal.caseflow.example"`
	LinkSigningKey    string        `env:"LINK_SIGNING_KEY"`
	LinkTTL           time.Duration `env:"LINK_TTL" envDefault:"72h"`
	PersistTimeout    time.Duration `env:"PERSIST_TIMEOUT" envDefault:"5s"`
	SideEffectTimeout time.Duration `env:"SIDE_EFFECT_TIMEOUT" envDefault:"3s"`
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if len(os.Args) != 2 || os.Args[1] == "" {
		fmt.Fprintln(os.Stderr, "usage: runner <customer-email>")
		os.Exit(1)
	}
	lookupKey := os.Args[1]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, lookupKey); err != nil {
		log.Error("pipeline run failed", "lookupKey", lookupKey, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, lookupKey string) error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("bootstrap database pool: %w", err)
	}
	defer pool.Close()

	links := notify.NewLinkSigner(cfg.PortalBaseURL, cfg.LinkSigningKey, cfg.LinkTTL)

	driver, err := pipeline.New(
		casefile.NewRepository(pool),
		timeline.NewRecorder(pool),
		notify.NewOutboxDispatcher(pool),
		pipeline.Stages(links),
		log,
	)
	if err != nil {
		return err
	}
	driver.WithTimeouts(cfg.PersistTimeout, cfg.SideEffectTimeout)

	summary, err := driver.Run(ctx, lookupKey)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrConfiguration):
			log.Error("configuration error", "error", err)
		case errors.Is(err, pipeline.ErrLookup):
			log.Error("lookup error", "lookupKey", lookupKey, "error", err)
		case errors.Is(err, pipeline.ErrPersistence):
			log.Error("persistence error, case left at last persisted stage", "caseId", summary.CaseID, "error", err)
		}
		return err
	}

	log.Info("pipeline run complete",
		"caseId", summary.CaseID,
		"finalStatus", string(summary.FinalStatus),
		"progress", summary.ProgressPercent,
		"stagesExecuted", summary.StagesExecuted,
		"sideEffectFailures", len(summary.SideEffectFailures))
	return nil
}
