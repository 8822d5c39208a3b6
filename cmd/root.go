package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/viktsys/tdingest/config"
	"github.com/viktsys/tdingest/database"
	"github.com/viktsys/tdingest/logging"
	"github.com/viktsys/tdingest/models"
	"gorm.io/gorm"
)

var rootCMD = &cobra.Command{
	Use:   "tdingest",
	Short: "Tesouro Direto sales and redemptions ingestion and query tool",
	Long: `A CLI application for ingesting the Tesouro Direto sales/redemptions
time-series spreadsheet into a relational store and serving aggregated
queries over it through a REST API.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCMD.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCMD.AddCommand(migrateCMD, ingestCMD, serverCMD)
}

// env is what every subcommand needs: configuration, a logger, a migrated
// database and the instrument table.
type env struct {
	cfg         *config.Config
	log         zerolog.Logger
	db          *gorm.DB
	instruments models.InstrumentTable
}

func setup() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.Log)
	instruments := models.DefaultInstruments()

	log.Info().Msg("initializing database")
	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(db, instruments, log); err != nil {
		return nil, err
	}

	return &env{cfg: cfg, log: log, db: db, instruments: instruments}, nil
}

func (e *env) close() {
	if sqlDB, err := e.db.DB(); err == nil {
		sqlDB.Close()
	}
}
