package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/moodpoints-api/internal/repository"
	"github.com/noah-isme/moodpoints-api/pkg/config"
	"github.com/noah-isme/moodpoints-api/pkg/database"
	"github.com/noah-isme/moodpoints-api/pkg/logger"
)

type runContext struct {
	ctx    context.Context
	db     *sqlx.DB
	logger *zap.Logger
}

type migrateCmd struct{}

func (m *migrateCmd) Run(rc *runContext) error {
	if err := repository.Migrate(rc.ctx, rc.db); err != nil {
		return err
	}
	rc.logger.Info("schema migrated")
	return nil
}

type seedCmd struct{}

func (s *seedCmd) Run(rc *runContext) error {
	seed := repository.DemoSeed()
	if err := repository.ApplySeed(rc.ctx, rc.db, seed); err != nil {
		return err
	}
	rc.logger.Info("demo data seeded",
		zap.Int("classes", len(seed.Classes)),
		zap.Int("students", len(seed.Students)),
		zap.Int("rewards", len(seed.Rewards)))
	return nil
}

type balanceCmd struct {
	StudentID string `arg:"" help:"Student identifier."`
}

func (b *balanceCmd) Run(rc *runContext) error {
	balance, err := repository.NewLedgerRepository(rc.db).Balance(rc.ctx, b.StudentID)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%d\n", b.StudentID, balance)
	return nil
}

var cli struct {
	Version kong.VersionFlag

	Migrate migrateCmd `cmd:"" help:"Create the roster, ledger and reward tables."`
	Seed    seedCmd    `cmd:"" help:"Insert the demo class, roster and reward catalog."`
	Balance balanceCmd `cmd:"" help:"Print a student's points balance."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("ledgerctl"),
		kong.Description("Operator tooling for the moodpoints store"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		os.Exit(1)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logr.Sync() //nolint:errcheck

	ctx := context.Background()
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := kctx.Run(&runContext{ctx: ctx, db: db, logger: logr}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
