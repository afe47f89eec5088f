package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MathFreedom/SafeMask/internal/config"
)

var polishInputFile string

var polishCmd = &cobra.Command{
	Use:   "polish {proofread|rewrite|summarize} [text]",
	Short: "Run an AI polish pass over text while preserving vault tokens",
	Long: `Sends the text through the configured AI provider for grammar correction,
clarity rewriting, or summarization. Vault tokens in the text are frozen to
opaque placeholders before the provider sees anything and restored verbatim
afterwards. Requires a configured API key.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPolish,
}

func init() {
	polishCmd.Flags().StringVarP(&polishInputFile, "file", "f", "", "read input text from file instead of args/stdin")
	rootCmd.AddCommand(polishCmd)
}

func runPolish(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "polish")
	defer span.End()

	pass := args[0]
	text, err := readInput(args[1:], polishInputFile)
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

	_, refiner, err := buildEngine(cfg, v, "")
	if err != nil {
		return err
	}
	if refiner == nil {
		return fmt.Errorf("polish requires an AI provider; set SAFEMASK_OPENAI_API_KEY or OPENAI_API_KEY")
	}

	switch pass {
	case "proofread":
		fmt.Println(refiner.Proofread(ctx, text))
	case "rewrite":
		fmt.Println(refiner.Rewrite(ctx, text))
	case "summarize":
		fmt.Println(refiner.Summarize(ctx, text))
	default:
		return fmt.Errorf("unknown polish pass %q (want proofread, rewrite, or summarize)", pass)
	}
	return nil
}
