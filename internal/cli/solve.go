package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"feasibility-engine/internal/app"
	"feasibility-engine/internal/obfuscation"
	"feasibility-engine/internal/storage"
)

// SolveOptions holds flags for the solve command.
type SolveOptions struct {
	*RootOptions
	Body          string
	Modifiers     string
	ModifiersFile string
	Output        string
}

// NewSolveCommand creates the one-shot solve command.
func NewSolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve one query document and write the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSolve(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Body, "body", "", "path to the query document")
	cmd.Flags().StringVar(&opts.Modifiers, "modifiers", "[]", "results modifiers as a JSON list")
	cmd.Flags().StringVar(&opts.ModifiersFile, "modifiers-file", "", "results modifiers as a YAML or JSON file")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "output.json", "result file, must end in .json")
	_ = cmd.MarkFlagRequired("body")
	cmd.MarkFlagsMutuallyExclusive("modifiers", "modifiers-file")

	return cmd
}

func runSolve(cmd *cobra.Command, opts *SolveOptions) error {
	if !strings.HasSuffix(opts.Output, ".json") {
		return fmt.Errorf("output %q must be a JSON file (ending in '.json')", opts.Output)
	}
	body, err := os.ReadFile(opts.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	filters, err := solveFilters(opts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	wh, err := storage.Open(ctx, opts.Config)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer wh.Close()

	res, err := app.NewEngine(opts.Config, wh).Execute(ctx, body, filters)
	if err != nil {
		return err
	}

	out, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(opts.Output, out, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	log.Info().Str("output", opts.Output).Str("status", string(res.Status)).Msg("saved result")
	return nil
}

func solveFilters(opts *SolveOptions) (obfuscation.Filters, error) {
	if opts.ModifiersFile != "" {
		return obfuscation.LoadFilters(opts.ModifiersFile)
	}
	return obfuscation.ParseFilters([]byte(opts.Modifiers))
}
