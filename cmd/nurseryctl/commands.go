package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/nursery-backend/internal/config"
	"github.com/tbourn/nursery-backend/internal/domain"
	"github.com/tbourn/nursery-backend/internal/forms"
	"github.com/tbourn/nursery-backend/internal/pdfdoc"
	"github.com/tbourn/nursery-backend/internal/repo"
	"github.com/tbourn/nursery-backend/internal/sysutil"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "nurseryctl",
		Short:         "nurseryctl - manage nursery form submissions",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("db", sysutil.FirstNonEmpty(os.Getenv("DB_PATH"), "nursery.db"), "SQLite database path")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(statsCmd())
	return rootCmd
}

// openDB opens the database named by --db and brings the schema up to date.
func openDB(cmd *cobra.Command) (*gorm.DB, error) {
	path, _ := cmd.Flags().GetString("db")
	db, err := repo.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := openDB(cmd); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent submissions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, _ := cmd.Flags().GetString("type")
			status, _ := cmd.Flags().GetString("status")
			email, _ := cmd.Flags().GetString("email")
			limit, _ := cmd.Flags().GetInt("limit")

			f := repo.Filter{Status: status, Email: email}
			if typ != "" {
				t := domain.SubmissionType(typ)
				if !t.Valid() {
					return fmt.Errorf("unknown type %q", typ)
				}
				f.Type = t
			}

			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			subs, err := repo.ListSubmissions(cmd.Context(), db, f, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "REFERENCE\tTYPE\tSTATUS\tNAME\tEMAIL\tCREATED")
			for _, s := range subs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					s.Reference, s.Type, s.Status, s.Name, s.Email, s.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringP("type", "t", "", "Submission type (e.g. visit_booking)")
	cmd.Flags().StringP("status", "s", "", "Status label (e.g. paid)")
	cmd.Flags().String("email", "", "Submitter email")
	cmd.Flags().IntP("limit", "n", 20, "Maximum rows")

	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [reference]",
		Short: "Print one submission as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := findByReference(cmd, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sub)
		},
	}
}

func renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render [reference]",
		Short: "Re-create the PDF copy of a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")

			sub, err := findByReference(cmd, args[0])
			if err != nil {
				return err
			}
			schema, err := forms.Lookup(sub.Type)
			if err != nil {
				return err
			}
			var rec forms.Record
			if err := json.Unmarshal(sub.Payload, &rec); err != nil {
				return fmt.Errorf("decode payload: %w", err)
			}
			doc, ok := pdfdoc.Build(sub.Type, schema.Title, sub.Reference, sub.CreatedAt, rec)
			if !ok {
				return fmt.Errorf("%s submissions have no PDF copy", sub.Type)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			r := pdfdoc.NewRenderer(pdfdoc.Org{
				Name:     cfg.Org.Name,
				Address:  cfg.Org.Address,
				Phone:    cfg.Org.Phone,
				Email:    cfg.Org.Email,
				Website:  cfg.Org.Website,
				LogoPath: cfg.Org.LogoPath,
			}, cfg.Location())
			pdf, err := r.Render(doc)
			if err != nil {
				return err
			}

			if out == "" {
				out = sub.Reference + ".pdf"
			}
			if err := os.WriteFile(out, pdf, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(pdf))
			return nil
		},
	}

	cmd.Flags().StringP("out", "o", "", "Output file (default <reference>.pdf)")

	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count submissions per type and status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			rows, err := repo.SubmissionStats(cmd.Context(), db)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tSTATUS\tCOUNT\tLATEST")
			for _, r := range rows {
				latest := "-"
				if r.LatestAt != nil {
					latest = r.LatestAt.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.Type, r.Status, r.Count, latest)
			}
			return tw.Flush()
		},
	}
}

func findByReference(cmd *cobra.Command, ref string) (*domain.Submission, error) {
	db, err := openDB(cmd)
	if err != nil {
		return nil, err
	}
	sub, err := repo.FindByReference(cmd.Context(), db, ref)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("no submission with reference %q", ref)
	}
	return sub, err
}
