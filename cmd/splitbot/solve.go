package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/susu3304/splitbot/internal/config"
	"github.com/susu3304/splitbot/internal/logging"
	"github.com/susu3304/splitbot/internal/parse"
	"github.com/susu3304/splitbot/internal/settle"
)

type solveOptions struct {
	file    string
	json    bool
	timeout time.Duration
}

func newSolveCommand() *cobra.Command {
	var opts solveOptions

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Settle an expense list read from stdin or a file",
		Long: "Reads one \"<name> <amount>\" line per participant and prints the transfers.\n" +
			"People who paid together share a line, joined with +.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("timeout") {
				opts.timeout = -1
			}
			return runSolve(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "read the expense list from this file instead of stdin")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the full result as JSON")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", config.DefaultSolveTimeout, "give up after this long (0 means no limit)")

	return cmd
}

func runSolve(cmd *cobra.Command, opts solveOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.timeout < 0 {
		opts.timeout = cfg.SolveTimeout
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	input, err := readInput(cmd, opts.file)
	if err != nil {
		return err
	}

	expenses, report, err := parse.Expenses(input)
	if err != nil {
		return fmt.Errorf("couldn't parse the expenses provided: %w", err)
	}
	for _, line := range report.Rejected {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %s\n", line)
	}

	solver := settle.NewSolver(settle.Options{
		Timeout:  opts.timeout,
		MaxExact: cfg.MaxExact,
		Logger:   logger,
	})
	res, solveErr := solver.Solve(cmd.Context(), expenses)
	var degenerate *settle.DegenerateInputError
	if errors.As(solveErr, &degenerate) {
		return solveErr
	}

	out := cmd.OutOrStdout()
	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			*settle.Result
			Message string `json:"message"`
		}{res, res.Text(cfg.CurrencySymbol)}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, res.Text(cfg.CurrencySymbol))
	}
	return solveErr
}

func readInput(cmd *cobra.Command, file string) (string, error) {
	var r io.Reader = cmd.InOrStdin()
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", file, err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading expenses: %w", err)
	}
	return string(data), nil
}
