package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MathFreedom/SafeMask/internal/anonymize"
	"github.com/MathFreedom/SafeMask/internal/config"
	"github.com/MathFreedom/SafeMask/internal/detect"
	"github.com/MathFreedom/SafeMask/internal/refine"
	"github.com/MathFreedom/SafeMask/internal/vault"
)

// openVault loads config, ensures the data directory, and opens the vault
// with the configured auto-lock and optional operator key.
func openVault(cfg *config.Config) (*vault.Vault, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	opts := []vault.Option{}
	if cfg.VaultKey != nil {
		opts = append(opts, vault.WithEncryptionKey(cfg.VaultKey))
	}
	if cfg.AutoLockMinutes > 0 {
		opts = append(opts, vault.WithAutoLock(time.Duration(cfg.AutoLockMinutes)*time.Minute))
	}
	v, err := vault.Open(cfg.VaultDBPath(), opts...)
	if err != nil {
		return nil, fmt.Errorf("opening vault: %w", err)
	}
	return v, nil
}

// buildEngine wires scanner, vault, and (when an API key is configured) the
// refinement collaborator into an anonymization engine.
func buildEngine(cfg *config.Config, v *vault.Vault, patternFile string) (*anonymize.Engine, *refine.Refiner, error) {
	var scanOpts []detect.ScannerOption
	if patternFile != "" {
		scanOpts = append(scanOpts, detect.WithPatternFile(patternFile))
	}
	scanner, err := detect.NewScanner(scanOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("building scanner: %w", err)
	}

	var engineOpts []anonymize.EngineOption
	var refiner *refine.Refiner
	if cfg.OpenAIAPIKey != "" {
		var provider refine.Provider
		if cfg.OpenAIBaseURL != "" {
			provider = refine.NewOpenAIProviderWithBaseURL(cfg.OpenAIAPIKey, cfg.RefineModel, cfg.OpenAIBaseURL)
		} else {
			provider = refine.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.RefineModel)
		}
		refiner = refine.NewRefiner(provider, refine.WithRateLimit(cfg.RefineRPM))
		engineOpts = append(engineOpts, anonymize.WithRefiner(refiner))
	} else {
		log.Debug().Msg("no refinement API key configured, smart mode degrades to baseline detection")
	}

	return anonymize.NewEngine(scanner, v, engineOpts...), refiner, nil
}

// resolvePolicy builds the effective policy from --policy and --mode flags.
// A policy file wins over the uniform mode shortcut.
func resolvePolicy(policyFile, mode string) (*anonymize.Policy, error) {
	if policyFile != "" {
		return anonymize.LoadPolicyFile(policyFile)
	}
	m, err := anonymize.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	return anonymize.UniformPolicy(m), nil
}

// readInput returns the text to process: positional args joined with spaces,
// the contents of --file, or stdin when neither is given.
func readInput(args []string, filePath string) (string, error) {
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("reading input file: %w", err)
		}
		return string(data), nil
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}
