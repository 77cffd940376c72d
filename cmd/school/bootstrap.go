package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"minimalapi/school/internal/bootstrap"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Run one-shot bootstrap and exit",
	Long: `Bootstrap creates the database schema for every mapped entity,
provisions the student event stream when events are enabled, and checks
the cache when it is enabled.

The command runs once, prints a JSON result to stdout, and exits 0 when
the result is ok or degraded, non-zero otherwise.`,
	RunE: runBootstrap,
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Bootstrap.Timeout)
	defer cancel()
	defer app.Close(context.Background())

	slog.Info("starting bootstrap")

	out := cmd.OutOrStdout()
	result, err := app.bootstrapper.Run(ctx)
	if err != nil {
		printResult(out, bootstrap.StatusError, err.Error())
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	printBootstrapResult(out, result)
	if result.Status == bootstrap.StatusError {
		return fmt.Errorf("bootstrap completed with errors")
	}

	slog.Info("bootstrap completed", "status", result.Status)
	return nil
}

func printBootstrapResult(w io.Writer, result *bootstrap.Result) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(w, `{"status":%q}`+"\n", result.Status)
	}
}

func printResult(w io.Writer, status, errMsg string) {
	result := map[string]string{"status": status}
	if errMsg != "" {
		result["error"] = errMsg
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(w, `{"status":%q}`+"\n", status)
	}
}
