package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/banshee-data/buscluster/internal/archive"
	"github.com/banshee-data/buscluster/internal/version"
)

func (a *app) requireArchive() (*archive.Store, error) {
	if a.cfg.Archive.Path == "" {
		return nil, errors.New("archive.path is not configured")
	}
	return archive.Open(a.cfg.Archive.Path)
}

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the run archive schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Open applies pending migrations.
			s, err := a.requireArchive()
			if err != nil {
				return err
			}
			defer s.Close()
			return printVersion(cmd, s)
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration, dropping archived runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.requireArchive()
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.MigrateDown(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "archive schema removed")
			return nil
		},
	}

	ver := &cobra.Command{
		Use:   "version",
		Short: "Print the archive schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.requireArchive()
			if err != nil {
				return err
			}
			defer s.Close()
			return printVersion(cmd, s)
		},
	}

	cmd.AddCommand(up, down, ver)
	return cmd
}

func printVersion(cmd *cobra.Command, s *archive.Store) error {
	v, dirty, err := s.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", v, dirty)
	return nil
}

func newRunsCmd(a *app) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recently archived detection runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.requireArchive()
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tCREATED\tTRANSPORT\tBUSES\tCLUSTERS\tNOISE\tRISK\tMS")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%.2f\n",
					r.RunID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Transport,
					r.BusCount, r.ClusterCount, r.NoiseCount, r.OverallRisk, r.DurationMs)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		// Version needs no configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		},
	}
}
