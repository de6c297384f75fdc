package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newScoreCmd() *cobra.Command {
	var noCache bool
	cmd := &cobra.Command{
		Use:   "score <url>",
		Short: "Score a single website",
		Long: `Runs the full hybrid pipeline against one URL and prints the combined
score as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScoreCommand(cmd, args[0], noCache)
		},
	}
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the score cache")
	return cmd
}

func runScoreCommand(cmd *cobra.Command, url string, noCache bool) error {
	p, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	score := p.scorer.Score
	if noCache {
		score = p.scorer.ScoreUncached
	}
	result, err := score(cmd.Context(), url)
	if err != nil {
		return fmt.Errorf("score %s: %w", url, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
