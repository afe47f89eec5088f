package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MathFreedom/SafeMask/internal/anonymize"
	"github.com/MathFreedom/SafeMask/internal/config"
	"github.com/MathFreedom/SafeMask/internal/diffview"
)

var (
	anonMode        string
	anonPolicyFile  string
	anonPatternFile string
	anonInputFile   string
	anonSmart       bool
	anonJSON        bool
	anonShowDiff    bool
)

var anonymizeCmd = &cobra.Command{
	Use:   "anonymize [text]",
	Short: "Detect sensitive data and transform it per the policy",
	Long: `Detects sensitive data in the given text (argument, --file, or stdin) and
rewrites it. The per-category policy comes from --policy; without one, --mode
applies the same mode to every category.

Pseudo mode issues deterministic reversible tokens backed by the local vault;
redact mode masks irreversibly; ignore leaves spans untouched.`,
	Example: `  safemask anonymize "Contact jane.doe@example.com or +1 415-555-0100"
  safemask anonymize --mode redact --file report.txt
  cat mail.txt | safemask anonymize --policy policy.yaml --smart --json`,
	RunE: runAnonymize,
}

func init() {
	anonymizeCmd.Flags().StringVar(&anonMode, "mode", "pseudo", "uniform mode for all categories (ignore, redact, pseudo)")
	anonymizeCmd.Flags().StringVar(&anonPolicyFile, "policy", "", "per-category policy YAML file (overrides --mode)")
	anonymizeCmd.Flags().StringVar(&anonPatternFile, "patterns", "", "recognizer override YAML file")
	anonymizeCmd.Flags().StringVarP(&anonInputFile, "file", "f", "", "read input text from file instead of args/stdin")
	anonymizeCmd.Flags().BoolVar(&anonSmart, "smart", false, "supplement detection with the AI refinement collaborator")
	anonymizeCmd.Flags().BoolVar(&anonJSON, "json", false, "emit the full result (text, matches, replacements) as JSON")
	anonymizeCmd.Flags().BoolVar(&anonShowDiff, "diff", false, "also print an HTML diff of original vs transformed to stderr")
	rootCmd.AddCommand(anonymizeCmd)
}

func runAnonymize(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "anonymize")
	defer span.End()

	text, err := readInput(args, anonInputFile)
	if err != nil {
		return err
	}

	pol, err := resolvePolicy(anonPolicyFile, anonMode)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	v, err := openVault(cfg)
	if err != nil {
		return err
	}
	defer v.Close()

	engine, _, err := buildEngine(cfg, v, anonPatternFile)
	if err != nil {
		return err
	}

	res, err := func() (*anonymize.Result, error) {
		if anonSmart {
			return engine.AnonymizeSmart(ctx, text, pol)
		}
		return engine.Anonymize(ctx, text, pol)
	}()
	if err != nil {
		return err
	}

	if anonJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
	} else {
		fmt.Println(res.Text)
	}

	if anonShowDiff {
		fmt.Fprintln(os.Stderr, diffview.HTML(text, res.Text))
	}
	return nil
}
