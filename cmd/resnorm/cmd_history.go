package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/umilab/resnorm/internal/ledger"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit      int
		ledgerPath string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path := ledgerPath
			if path == "" {
				path = cfg.Ledger.Path
			}

			out := cmd.OutOrStdout()
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintln(out, "No runs recorded.") //nolint:errcheck
				return nil
			}

			l, err := ledger.Open(cmd.Context(), path)
			if err != nil {
				return err
			}
			defer l.Close() //nolint:errcheck

			runs, err := l.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.") //nolint:errcheck
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				status := r.Status
				if r.Status == ledger.StatusFailed && r.Code != "" {
					status += " (" + r.Code + ")"
				}
				rows = append(rows, []string{
					r.StartedAt.Local().Format(time.DateTime),
					r.Pipeline,
					status,
					strconv.Itoa(r.Files),
					strconv.Itoa(r.Lines),
					r.Duration.Round(time.Millisecond).String(),
					r.Input,
					r.Output,
				})
			}
			writeTable(out, []string{"STARTED", "PIPELINE", "STATUS", "FILES", "LINES", "DURATION", "INPUT", "OUTPUT"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0: all)")
	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "Ledger database to read (default: ledger.path from config)")

	return cmd
}
