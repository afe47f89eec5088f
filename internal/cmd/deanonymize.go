package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MathFreedom/SafeMask/internal/config"
)

var deanonInputFile string

var deanonymizeCmd = &cobra.Command{
	Use:   "deanonymize [text]",
	Short: "Restore original values for vault tokens in text",
	Long: `Scans the given text (argument, --file, or stdin) for previously issued
tokens and substitutes each known token with its original value from the
vault. Tokens the vault does not know are left untouched.`,
	Example: `  safemask deanonymize "Contact EMAIL_5B9A1C44 about the invoice"
  cat masked.txt | safemask deanonymize`,
	RunE: runDeanonymize,
}

func init() {
	deanonymizeCmd.Flags().StringVarP(&deanonInputFile, "file", "f", "", "read input text from file instead of args/stdin")
	rootCmd.AddCommand(deanonymizeCmd)
}

func runDeanonymize(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "deanonymize")
	defer span.End()

	text, err := readInput(args, deanonInputFile)
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

	engine, _, err := buildEngine(cfg, v, "")
	if err != nil {
		return err
	}

	restored, err := engine.Deanonymize(ctx, text)
	if err != nil {
		return err
	}
	fmt.Println(restored)
	return nil
}
