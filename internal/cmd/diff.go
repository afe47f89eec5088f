package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MathFreedom/SafeMask/internal/diffview"
)

var diffCmd = &cobra.Command{
	Use:   "diff <original-file> <transformed-file>",
	Short: "Render a word-level HTML diff between two text files",
	Long: `Computes a word-level diff between the original and transformed text and
prints annotated HTML to stdout: removed words wrapped in sm-del spans,
inserted words in sm-ins spans, unchanged text verbatim.`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	_, span := tracer.Start(cmd.Context(), "diff")
	defer span.End()

	original, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading original: %w", err)
	}
	transformed, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("reading transformed: %w", err)
	}

	fmt.Println(diffview.HTML(string(original), string(transformed)))
	return nil
}
