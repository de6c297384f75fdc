package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lauravimes/leadblitz/internal/batch"
)

func newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch <leads.json>",
		Short: "Score a file of leads",
		Long: `Reads a JSON array of leads ({"id", "name", "website"}) and scores them
through the bounded worker pool, printing a summary as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: runBatchCommand,
	}
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read leads file: %w", err)
	}
	var leads []batch.Lead
	if err := json.Unmarshal(raw, &leads); err != nil {
		return fmt.Errorf("parse leads file: %w", err)
	}
	if len(leads) == 0 {
		return fmt.Errorf("leads file is empty")
	}

	summary := p.runner.Run(cmd.Context(), leads)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}
