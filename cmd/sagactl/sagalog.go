package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jcmexdev/order-payment-saga/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-payment-saga/internal/coordinator/sagalog/sqlite"
)

func historyCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "history <orderId>",
		Short: "Print every saga log entry of an order, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := parseOrderID(args[0])
			if err != nil {
				return err
			}
			repo, err := openLog(dbPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			entries, err := repo.History(cmd.Context(), orderID)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("no saga log for order %s", orderID)
			}
			return printEntries(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "saga log database (default $SAGA_LOG_PATH)")
	return cmd
}

func latestCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "latest <orderId>",
		Short: "Print the most recent saga log entry of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := parseOrderID(args[0])
			if err != nil {
				return err
			}
			repo, err := openLog(dbPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			entry, err := repo.GetLatest(cmd.Context(), orderID)
			if err != nil {
				return err
			}
			return printEntries(cmd.OutOrStdout(), []sagalog.SagaLog{*entry})
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "saga log database (default $SAGA_LOG_PATH)")
	return cmd
}

func traceCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "trace <traceId>",
		Short: "Print the saga log entries written under a trace id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openLog(dbPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			entries, err := repo.ByTrace(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("no saga log for trace %s", args[0])
			}
			return printEntries(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "saga log database (default $SAGA_LOG_PATH)")
	return cmd
}

func parseOrderID(s string) (string, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid order id %q: %w", s, err)
	}
	return id.String(), nil
}

func openLog(path string) (*sqlite.Repository, error) {
	if path == "" {
		path = os.Getenv("SAGA_LOG_PATH")
	}
	if path == "" {
		return nil, errors.New("no saga log: pass --db or set SAGA_LOG_PATH")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("saga log %s: %w", path, err)
	}
	return sqlite.Open(path)
}

func printEntries(out io.Writer, entries []sagalog.SagaLog) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "UPDATED\tORDER\tSTATUS\tSTEP\tTRACE\tERRORS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.UpdatedAt.Format(time.RFC3339Nano), e.SagaID, e.Status, e.CurrentStep, e.TraceID, e.ErrorMessages)
	}
	return w.Flush()
}
