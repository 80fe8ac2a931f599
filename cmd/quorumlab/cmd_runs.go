package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/quorumlab/internal/backup"
	"github.com/nvandessel/quorumlab/internal/constants"
	"github.com/nvandessel/quorumlab/internal/pathutil"
	"github.com/nvandessel/quorumlab/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded derive, analyze and profile runs",
		Long: `Runs are recorded in <data_dir>/quorumlab.db when storage.record_runs is on.

Examples:
  quorumlab runs list --kind derive --limit 5
  quorumlab runs show 3f2a
  quorumlab runs export runs.jsonl
  quorumlab runs import runs.jsonl
  quorumlab runs backup --keep 5`,
	}

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsExportCmd(),
		newRunsImportCmd(),
		newRunsDeleteCmd(),
		newRunsBackupCmd(),
		newRunsRestoreCmd(),
	)
	return cmd
}

// openRunStore opens the SQLite run store regardless of record_runs.
func openRunStore(cmd *cobra.Command) (*store.SQLiteRunStore, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return openRunStoreAt(cfg.Storage.DataDir)
}

func openRunStoreAt(dataDir string) (*store.SQLiteRunStore, error) {
	s, err := store.NewSQLiteRunStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return s, nil
}

func runFilterFlags(cmd *cobra.Command) (store.RunFilter, error) {
	kind, _ := cmd.Flags().GetString("kind")
	step, _ := cmd.Flags().GetString("step")
	limit, _ := cmd.Flags().GetInt("limit")

	f := store.RunFilter{Kind: kind, Limit: limit}
	switch kind {
	case "", store.KindDerive, store.KindAnalyze, store.KindProfile:
	default:
		return f, fmt.Errorf("invalid kind %q (valid: derive, analyze, profile)", kind)
	}
	if step != "" {
		s, err := constants.ParseStep(step)
		if err != nil {
			return f, err
		}
		f.Step = s
	}
	return f, nil
}

func addRunFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("kind", "", "Filter by kind: derive, analyze or profile")
	cmd.Flags().String("step", "", "Filter by step")
	cmd.Flags().Int("limit", 0, "Maximum runs (0 for all)")
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			filter, err := runFilterFlags(cmd)
			if err != nil {
				return err
			}

			s, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"runs":  runs,
					"count": len(runs),
				})
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tSTEP\tCREATED")
			for _, r := range runs {
				step := string(r.Step)
				if step == "" {
					step = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", shortID(r.ID), r.Kind, step, r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
	addRunFilterFlags(cmd)
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a recorded run by ID or unique ID prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			s, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := s.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(run)
			}
			fmt.Fprintf(out, "Run:     %s\n", run.ID)
			fmt.Fprintf(out, "Kind:    %s\n", run.Kind)
			if run.Step != "" {
				fmt.Fprintf(out, "Step:    %s\n", run.Step)
			}
			fmt.Fprintf(out, "Created: %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintln(out, "\nParameters:")
			writeIndented(out, run.Params)
			fmt.Fprintln(out, "\nResult:")
			writeIndented(out, run.Result)
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeIndented(w io.Writer, raw json.RawMessage) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "  ", "  "); err != nil {
		fmt.Fprintf(w, "  %s\n", raw)
		return
	}
	fmt.Fprintf(w, "  %s\n", buf.String())
}

func newRunsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export runs as JSON lines, oldest first (\"-\" for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			filter, err := runFilterFlags(cmd)
			if err != nil {
				return err
			}

			s, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if args[0] == "-" {
				_, err := store.ExportJSONL(cmd.Context(), s, cmd.OutOrStdout(), filter)
				return err
			}

			path, err := pathutil.OutputPath(args[0])
			if err != nil {
				return err
			}
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create export file: %w", err)
			}
			n, err := store.ExportJSONL(cmd.Context(), s, f, filter)
			if cerr := f.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("failed to close export file: %w", cerr)
			}
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"status": "exported",
					"path":   path,
					"count":  n,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d runs to %s\n", n, path)
			return nil
		},
	}
	addRunFilterFlags(cmd)
	return cmd
}

func newRunsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import runs from a JSON lines export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open import file: %w", err)
			}
			defer f.Close()

			s, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := store.ImportJSONL(cmd.Context(), s, f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"status": "imported",
					"count":  n,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d runs\n", n)
			return nil
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			s, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := s.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := s.DeleteRun(cmd.Context(), run.ID); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
					"status": "deleted",
					"id":     run.ID,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", run.ID)
			return nil
		},
	}
}

func newRunsBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a compressed backup of the run history",
		Long: `Write every recorded run to <data_dir>/backups as a checksummed, gzip
compressed file, then prune old backups.

Examples:
  quorumlab runs backup
  quorumlab runs backup --keep 3 --max-age 30d`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			keep, _ := cmd.Flags().GetInt("keep")
			maxAge, _ := cmd.Flags().GetString("max-age")

			var policy backup.RetentionPolicy
			if maxAge != "" {
				d, err := backup.ParseDuration(maxAge)
				if err != nil {
					return err
				}
				policy = &backup.AgePolicy{MaxAge: d}
			} else if keep > 0 {
				policy = &backup.CountPolicy{MaxCount: keep}
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openRunStoreAt(cfg.Storage.DataDir)
			if err != nil {
				return err
			}
			defer s.Close()

			dir := backup.Dir(cfg.Storage.DataDir)
			path := backup.GeneratePath(dir, time.Now())
			h, err := backup.Backup(cmd.Context(), s, path)
			if err != nil {
				return err
			}

			var deleted []string
			if policy != nil {
				deleted, err = backup.ApplyRetention(dir, policy)
				if err != nil {
					return fmt.Errorf("backup written but retention failed: %w", err)
				}
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"status":  "backed_up",
					"path":    path,
					"runs":    h.RunCount,
					"deleted": len(deleted),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d runs to %s\n", h.RunCount, path)
			if len(deleted) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d old backups\n", len(deleted))
			}
			return nil
		},
	}
	cmd.Flags().Int("keep", 10, "Backups to keep (0 keeps all)")
	cmd.Flags().String("max-age", "", "Keep backups newer than this (e.g. 30d, 2w); overrides --keep")
	return cmd
}

func newRunsRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file>",
		Short: "Restore runs from a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			s, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := backup.Restore(cmd.Context(), s, args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", pathutil.RedactPath(args[0]), err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"status": "restored",
					"count":  n,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d runs\n", n)
			return nil
		},
	}
}
