package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MathFreedom/SafeMask/internal/detect"
)

var (
	scanPatternFile string
	scanInputFile   string
	scanJSON        bool
	scanRaw         bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [text]",
	Short: "Detect sensitive data without transforming the text",
	Long: `Runs detection only and lists the found spans. By default overlapping
candidates are resolved by priority and length; --raw shows every candidate
before resolution.`,
	Example: `  safemask scan "wire to FR1420041010050500013M02606"
  cat mail.txt | safemask scan --json`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanPatternFile, "patterns", "", "recognizer override YAML file")
	scanCmd.Flags().StringVarP(&scanInputFile, "file", "f", "", "read input text from file instead of args/stdin")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "emit spans as JSON")
	scanCmd.Flags().BoolVar(&scanRaw, "raw", false, "show all candidates, skipping overlap resolution")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "scan")
	defer span.End()

	text, err := readInput(args, scanInputFile)
	if err != nil {
		return err
	}

	var opts []detect.ScannerOption
	if scanPatternFile != "" {
		opts = append(opts, detect.WithPatternFile(scanPatternFile))
	}
	scanner, err := detect.NewScanner(opts...)
	if err != nil {
		return fmt.Errorf("building scanner: %w", err)
	}

	spans := scanner.DetectAll(ctx, text)
	if !scanRaw {
		spans = detect.Resolve(spans)
	}

	if scanJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(spans)
	}
	for _, s := range spans {
		fmt.Printf("%-14s [%d:%d]  %s\n", s.Type, s.Start, s.End, s.Value)
	}
	return nil
}
