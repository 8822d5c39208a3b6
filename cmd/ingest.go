package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viktsys/tdingest/ingest"
	"github.com/viktsys/tdingest/store"
)

var (
	snapshotPath string
	batchSize    int
)

var ingestCMD = &cobra.Command{
	Use:   "ingest [xlsx-file | parquet-snapshot | directory]",
	Short: "Ingest the Tesouro Direto spreadsheet into the database",
	Long: `Read the wide sales/redemptions spreadsheet (or a Parquet snapshot, or every
xlsx file of a directory), reshape it into one row per instrument, month and
action, and load it into the database. Loaded values replace what is stored.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		opts := ingest.Options{
			BatchSize:    e.cfg.Ingest.BatchSize,
			SnapshotPath: e.cfg.Ingest.SnapshotPath,
		}
		if cmd.Flags().Changed("snapshot") {
			opts.SnapshotPath = snapshotPath
		}
		if cmd.Flags().Changed("batch-size") {
			opts.BatchSize = batchSize
		}

		st := store.New(e.db, e.instruments, e.log)
		processor := ingest.NewProcessor(st, e.instruments, opts, e.log)

		res, err := processor.Process(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to process data: %w", err)
		}

		fmt.Printf("Ingestion completed. Rows loaded: %d (run %s)\n", res.Load.Rows, res.RunID)
		return nil
	},
}

func init() {
	ingestCMD.Flags().StringVar(&snapshotPath, "snapshot", "", "write the cleaned dataset to this Parquet file")
	ingestCMD.Flags().IntVar(&batchSize, "batch-size", ingest.DefaultBatchSize, "rows per insert statement")
}
