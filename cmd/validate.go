package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/xref-cli/internal/model"
	"github.com/sells-group/xref-cli/internal/orchestrator"
	"github.com/sells-group/xref-cli/internal/partlist"
	"github.com/sells-group/xref-cli/internal/store"
)

var (
	validateFile   string
	validateListID string
	validateResume bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a parts list against the catalog",
	Long:  "Streams a parts list through the catalog's batch validation endpoint, printing progress as results arrive. Progress is checkpointed so an interrupted run can be resumed with --resume.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("validate"); err != nil {
			return err
		}

		coord, st, err := initCoordinator(ctx, initCatalog())
		if err != nil {
			return err
		}
		defer st.Close()
		defer coord.Close()

		rows, err := loadValidationRows(ctx, st)
		if err != nil {
			return err
		}

		sess, err := coord.Start(ctx, validateListID, rows)
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		obsID, err := coord.Subscribe(sess.ID, func(snap orchestrator.Snapshot) {
			p.Printf("\r%s %6.1f%% (%d rows)", snap.State, snap.Progress*100, len(snap.Rows))
		})
		if err != nil {
			return err
		}
		defer coord.Unsubscribe(sess.ID, obsID) //nolint:errcheck

		select {
		case <-ctx.Done():
			// The session runs on its own context; an interrupt here cancels
			// it explicitly so the partial checkpoint lands before exit.
			if err := coord.Cancel(sess.ID); err != nil {
				return err
			}
			<-sess.Done()
		case <-sess.Done():
		}

		final := sess.Snapshot()
		p.Printf("\n")
		printValidationSummary(p, final)

		if final.State == orchestrator.StateFailed {
			return eris.Errorf("validation failed: %s", final.Err)
		}
		return nil
	},
}

// loadValidationRows reads rows from the input file, or from the last
// checkpoint when resuming.
func loadValidationRows(ctx context.Context, st store.Store) ([]model.PartsListRow, error) {
	if validateResume {
		rows, err := st.LoadRows(ctx, validateListID)
		if err != nil {
			return nil, eris.Wrapf(err, "load checkpoint %s", validateListID)
		}
		if rows == nil {
			return nil, eris.Errorf("no checkpoint found for list %s", validateListID)
		}
		return rows, nil
	}
	if validateFile == "" {
		return nil, eris.New("--file is required unless --resume is set")
	}
	return partlist.Load(validateFile)
}

func printValidationSummary(p *message.Printer, snap orchestrator.Snapshot) {
	counts := map[model.RowStatus]int{}
	for _, row := range snap.Rows {
		counts[row.Status]++
	}
	p.Printf("Session %s finished (%s): %d resolved, %d not found, %d errors, %d rows total.\n",
		snap.SessionID, snap.State,
		counts[model.RowResolved], counts[model.RowNotFound], counts[model.RowError], len(snap.Rows))

	for _, row := range snap.Rows {
		if row.Status != model.RowError && row.Status != model.RowNotFound {
			continue
		}
		p.Printf("  row %d  %-24s %s %s\n", row.RowIndex, row.RawMPN, row.Status, row.ErrorMessage)
	}
}

func init() {
	validateCmd.Flags().StringVar(&validateFile, "file", "", "parts list file (.csv or .xlsx)")
	validateCmd.Flags().StringVar(&validateListID, "list-id", "", "list identifier for checkpointing (required)")
	validateCmd.Flags().BoolVar(&validateResume, "resume", false, "resume from the last checkpoint instead of reading --file")
	_ = validateCmd.MarkFlagRequired("list-id")
	rootCmd.AddCommand(validateCmd)
}
