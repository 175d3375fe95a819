package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/sirgraph/internal/backup"
	"github.com/nvandessel/sirgraph/internal/config"
	"github.com/nvandessel/sirgraph/internal/pathutil"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up and restore the results store",
		Long: `Back up finished runs to a compressed bundle, and restore them.

Bundles live in ~/.sirgraph/backups by default. Bundle paths must be under
that directory or the configured output directory.`,
	}
	cmd.AddCommand(
		newBackupCreateCmd(),
		newBackupVerifyCmd(),
		newBackupRestoreCmd(),
		newBackupListCmd(),
		newBackupPruneCmd(),
	)
	return cmd
}

// backupOptions returns the allowed bundle locations and the default
// bundle directory.
func backupOptions(cfg *config.SirgraphConfig) (backup.Options, string, error) {
	home, err := config.HomeDir()
	if err != nil {
		return backup.Options{}, "", err
	}
	return backup.Options{AllowedDirs: pathutil.BackupDirs(home, cfg.Output.Dir)}, backup.DefaultDir(home), nil
}

func newBackupCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [expidx...]",
		Short: "Back up runs (all finished runs by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			opts, dir, err := backupOptions(cfg)
			if err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("output")
			if path == "" {
				path = backup.GeneratePath(dir, time.Now())
			}

			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			h, err := backup.Create(context.Background(), s, path, args, opts)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"path":   path,
					"header": h,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d run(s), %d rows to %s\n",
				h.RunCount, h.RowCount, pathutil.RedactPath(path))
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Bundle path (default: timestamped file in the backup directory)")
	return cmd
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Check a bundle's checksum and counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := backup.Verify(args[0])
			if jsonOutput(cmd) {
				result := map[string]interface{}{"path": args[0], "valid": err == nil}
				if err != nil {
					result["error"] = err.Error()
				} else {
					result["header"] = h
				}
				if encErr := writeJSON(cmd.OutOrStdout(), result); encErr != nil {
					return encErr
				}
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d run(s), %d rows, created %s\n",
				h.RunCount, h.RowCount, h.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Restore runs from a bundle",
		Long: `Restore runs from a bundle into the results store.

Modes:
  merge    keep runs that already exist (default)
  replace  overwrite runs with the same expidx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			opts, _, err := backupOptions(cfg)
			if err != nil {
				return err
			}
			modeStr, _ := cmd.Flags().GetString("mode")
			mode, err := backup.ParseRestoreMode(modeStr)
			if err != nil {
				return err
			}

			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := backup.Restore(context.Background(), s, args[0], mode, opts)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d run(s) (%d rows), skipped %d\n",
				res.Restored, res.Rows, res.Skipped)
			return nil
		},
	}
	cmd.Flags().String("mode", string(backup.RestoreMerge), "Restore mode: merge or replace")
	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List bundles in the backup directory, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := config.HomeDir()
			if err != nil {
				return err
			}
			bundles, err := backup.List(backup.DefaultDir(home))
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"bundles": bundles,
					"count":   len(bundles),
				})
			}
			if len(bundles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No backups.")
				return nil
			}
			for _, b := range bundles {
				status := fmt.Sprintf("%d run(s)", b.Runs)
				if !b.Valid {
					status = "unreadable"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d bytes  %s\n",
					b.CreatedAt.Format("2006-01-02 15:04:05"), pathutil.RedactPath(b.Path), b.Size, status)
			}
			return nil
		},
	}
}

func newBackupPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old bundles",
		Long: `Delete bundles from the backup directory. A bundle is kept when it is one
of the --keep newest or younger than --max-age.

Examples:
  sirgraph backup prune --keep 5
  sirgraph backup prune --keep 3 --max-age 30d`,
		RunE: func(cmd *cobra.Command, args []string) error {
			keep, _ := cmd.Flags().GetInt("keep")
			maxAge, _ := cmd.Flags().GetString("max-age")

			policy := backup.AnyOf{backup.KeepLast(keep)}
			if maxAge != "" {
				age, err := backup.ParseAge(maxAge)
				if err != nil {
					return err
				}
				policy = append(policy, backup.KeepWithin(age))
			}

			home, err := config.HomeDir()
			if err != nil {
				return err
			}
			deleted, err := backup.Prune(backup.DefaultDir(home), policy, time.Now())
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"deleted": deleted,
					"count":   len(deleted),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d bundle(s)\n", len(deleted))
			return nil
		},
	}
	cmd.Flags().Int("keep", 10, "Number of newest bundles to keep")
	cmd.Flags().String("max-age", "", "Also keep bundles younger than this (e.g. 72h, 30d, 2w)")
	return cmd
}
