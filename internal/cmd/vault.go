package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MathFreedom/SafeMask/internal/config"
	"github.com/MathFreedom/SafeMask/internal/vault"
)

var (
	vaultAuditLimit  int
	vaultClearForce  bool
	vaultImportForce bool
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Inspect and manage the pseudonymization vault",
}

var vaultStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault state and token count",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "vault_status")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		v, err := openVault(cfg)
		if err != nil {
			return err
		}
		defer v.Close()

		fmt.Printf("Database: %s\n", cfg.VaultDBPath())
		fmt.Printf("Unlocked: %t\n", v.IsUnlocked())
		fmt.Printf("Tokens:   %d\n", v.Len())
		return nil
	},
}

var vaultExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the encrypted vault snapshot as JSON",
	Long: `Writes the vault's encrypted snapshot to the given file (or stdout). The
snapshot stays encrypted: it is only usable on an install holding the same
encryption key.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "vault_export")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		v, err := openVault(cfg)
		if err != nil {
			return err
		}
		defer v.Close()

		snap, err := v.ExportSnapshot(ctx)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding snapshot: %w", err)
		}
		if len(args) == 1 {
			if err := os.WriteFile(args[0], data, 0o600); err != nil {
				return fmt.Errorf("writing snapshot: %w", err)
			}
			fmt.Printf("Snapshot written to %s\n", args[0])
			return nil
		}
		fmt.Println(string(data))
		return nil
	},
}

var vaultImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the vault contents from an exported snapshot",
	Long: `Wholesale-replaces the local vault blob with the snapshot in the given
file. The snapshot must have been exported from an install holding the same
encryption key; a foreign-keyed snapshot is rejected and the vault locks.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "vault_import")
		defer span.End()

		if !vaultImportForce {
			return fmt.Errorf("import replaces all existing vault contents; re-run with --force to confirm")
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading snapshot: %w", err)
		}
		var snap vault.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("parsing snapshot: %w", err)
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

		if err := v.ImportSnapshot(ctx, &snap); err != nil {
			return err
		}
		fmt.Printf("Imported snapshot; vault now holds %d tokens\n", v.Len())
		return nil
	},
}

var vaultClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all token mappings from the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "vault_clear")
		defer span.End()

		if !vaultClearForce {
			return fmt.Errorf("clearing makes all previously issued tokens irreversible; re-run with --force to confirm")
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

		if err := v.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("Vault cleared")
		return nil
	},
}

var vaultAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent vault access records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "vault_audit")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		v, err := openVault(cfg)
		if err != nil {
			return err
		}
		defer v.Close()

		records, err := v.AuditLog(ctx, vaultAuditLimit)
		if err != nil {
			return err
		}
		for _, r := range records {
			status := "ok"
			if !r.Allowed {
				status = "denied"
			}
			fmt.Printf("%s  %-16s %-24s %-6s %s\n",
				r.Timestamp.Format("2006-01-02 15:04:05"), r.Op, r.Token, status, r.Reason)
		}
		return nil
	},
}

func init() {
	vaultImportCmd.Flags().BoolVar(&vaultImportForce, "force", false, "confirm replacing the vault contents")
	vaultClearCmd.Flags().BoolVar(&vaultClearForce, "force", false, "confirm deleting all token mappings")
	vaultAuditCmd.Flags().IntVar(&vaultAuditLimit, "limit", 50, "maximum number of records to show")

	vaultCmd.AddCommand(vaultStatusCmd)
	vaultCmd.AddCommand(vaultExportCmd)
	vaultCmd.AddCommand(vaultImportCmd)
	vaultCmd.AddCommand(vaultClearCmd)
	vaultCmd.AddCommand(vaultAuditCmd)
	rootCmd.AddCommand(vaultCmd)
}
