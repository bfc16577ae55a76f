package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/scheduler"
)

func newRunCmd(c *cli) *cobra.Command {
	var actorID, inputPath, runID string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dispatch one task in-process and print its result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			input, err := readInput(cmd.InOrStdin(), inputPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if hard := c.cfg.Queue.HardTimeLimit; hard > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, hard)
				defer cancel()
			}
			if soft := c.cfg.Queue.SoftTimeLimit; soft > 0 {
				ctx = scheduler.WithSoftDeadline(ctx, time.Now().Add(soft))
			}

			a, err := newApp(c.cfg)
			if err != nil {
				return err
			}
			res := a.dispatcher.Dispatch(ctx, actorID, input, runID)

			flushCtx, cancel := context.WithTimeout(context.Background(), c.cfg.Status.Timeout)
			defer cancel()
			_ = a.close(flushCtx)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if !res.OK() {
				return fmt.Errorf("%s: %s", res.Code, res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor id to dispatch")
	cmd.Flags().StringVar(&inputPath, "input", "-", "JSON input file, or - for stdin")
	cmd.Flags().StringVar(&runID, "run-id", "", "correlation id for status events")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func readInput(stdin io.Reader, path string) (map[string]any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	input := map[string]any{}
	if len(data) == 0 {
		return input, nil
	}
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "input is not a JSON object", err)
	}
	return input, nil
}
