package cli

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/aptrec/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/aptrec/internal/infrastructure/listing"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
)

func NewListingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Manage listing links",
	}

	var file string
	imp := &cobra.Command{
		Use:   "import",
		Short: "Bulk-load a PropertyName,Link CSV into the listings table",
		Long: "import upserts every row of the CSV into Postgres and, when the listing\n" +
			"cache is enabled, drops the cached links so the new ones are served.",
		Example: `  aptrec listings import --file ./data/apartments.csv`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				return runListingsImport(ctx, cmd, cc, file)
			})
		},
	}
	imp.Flags().StringVarP(&file, "file", "f", "", "CSV file (default: listing.file from config)")

	cmd.AddCommand(imp)
	return cmd
}

type importView struct {
	File        string `json:"file"`
	Rows        int    `json:"rows"`
	Upserted    int64  `json:"upserted"`
	Invalidated int64  `json:"cache_invalidated"`
}

func (v importView) TableHeaders() []string {
	return []string{"File", "Rows", "Upserted", "Cache Invalidated"}
}

func (v importView) TableRows() [][]string {
	return [][]string{{
		v.File,
		strconv.Itoa(v.Rows),
		strconv.FormatInt(v.Upserted, 10),
		strconv.FormatInt(v.Invalidated, 10),
	}}
}

func runListingsImport(ctx context.Context, cmd *cobra.Command, cc *CLIContext, file string) error {
	if file == "" {
		file = cc.Config.Listing.File
	}
	csv, err := listing.LoadCSV(file)
	if err != nil {
		return err
	}

	records := csv.Records()
	rows := make([]repositories.Listing, len(records))
	for i, r := range records {
		rows[i] = repositories.Listing{PropertyName: r.PropertyName, Link: r.Link}
	}

	lock, err := cc.Factories.ImportLock(cc)
	if err != nil {
		return err
	}
	if lock != nil {
		if err := lock.Lock(ctx); err != nil {
			return err
		}
		defer func() {
			if err := lock.Unlock(context.Background()); err != nil {
				cc.Logger.Warn("failed to release import lock", logging.Err(err))
			}
		}()
	}

	importer, err := cc.Factories.Importer(ctx, cc)
	if err != nil {
		return err
	}
	n, err := importer.Import(ctx, rows)
	if err != nil {
		return err
	}
	view := importView{File: file, Rows: len(rows), Upserted: n}

	inv, err := cc.Factories.Invalidator(cc)
	if err != nil {
		cc.Logger.Warn("listing cache unavailable, cached links expire by TTL", logging.Err(err))
	} else if inv != nil {
		dropped, err := inv.Invalidate(ctx)
		if err != nil {
			cc.Logger.Warn("failed to invalidate listing cache", logging.Err(err))
		}
		view.Invalidated = dropped
	}

	PrintSuccess(cmd, "listings imported")
	return PrintResult(cmd, view)
}

//Personal.AI order the ending
