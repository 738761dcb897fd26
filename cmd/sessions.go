package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List validation checkpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		checkpoints, err := st.ListCheckpoints(ctx, sessionsLimit)
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		if len(checkpoints) == 0 {
			p.Printf("No checkpoints.\n")
			return nil
		}
		p.Printf("%-32s %8s %10s  %s\n", "LIST", "ROWS", "RESOLVED", "UPDATED")
		for _, cp := range checkpoints {
			p.Printf("%-32s %8d %10d  %s\n", cp.ListID, cp.RowCount, cp.ResolvedCount, cp.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <list-id>",
	Short: "Delete a validation checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}
		return st.DeleteCheckpoint(ctx, args[0])
	},
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 50, "max checkpoints to list")
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}
