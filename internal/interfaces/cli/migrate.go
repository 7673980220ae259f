package cli

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/aptrec/pkg/errors"
)

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the listings database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(_ context.Context, cc *CLIContext) error {
				m := cc.Factories.Migrator(cc)
				if err := m.Up(); err != nil {
					return err
				}
				return printMigrationStatus(cmd, m, "migrations applied")
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(_ context.Context, cc *CLIContext) error {
				m := cc.Factories.Migrator(cc)
				if err := m.Down(steps); err != nil {
					return err
				}
				return printMigrationStatus(cmd, m, "rolled back "+strconv.Itoa(steps)+" migration(s)")
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(_ context.Context, cc *CLIContext) error {
				return printMigrationStatus(cmd, cc.Factories.Migrator(cc), "")
			})
		},
	}

	force := &cobra.Command{
		Use:   "force <version>",
		Short: "Record a schema version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.InvalidParam("version must be an integer").WithDetail(args[0])
			}
			return run(cmd, func(_ context.Context, cc *CLIContext) error {
				m := cc.Factories.Migrator(cc)
				if err := m.Force(version); err != nil {
					return err
				}
				return printMigrationStatus(cmd, m, "version forced")
			})
		},
	}

	cmd.AddCommand(up, down, status, force)
	return cmd
}

type migrationView struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func (v migrationView) TableHeaders() []string { return []string{"Version", "Dirty"} }

func (v migrationView) TableRows() [][]string {
	return [][]string{{strconv.FormatUint(uint64(v.Version), 10), strconv.FormatBool(v.Dirty)}}
}

func printMigrationStatus(cmd *cobra.Command, m Migrator, done string) error {
	st, err := m.Status()
	if err != nil {
		return err
	}
	if done != "" {
		PrintSuccess(cmd, done)
	}
	return PrintResult(cmd, migrationView{Version: st.Version, Dirty: st.Dirty})
}

//Personal.AI order the ending
