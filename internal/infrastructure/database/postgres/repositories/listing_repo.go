package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/turtacn/aptrec/internal/infrastructure/database/postgres"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/pkg/errors"
)

// Listing is one row of the listings table.
type Listing struct {
	PropertyName string
	Link         string
	UpdatedAt    time.Time
}

// ListingRepository reads and writes property listing links.
type ListingRepository struct {
	conn *postgres.Connection
	bulk postgres.TxBeginner
	log  logging.Logger
}

// NewListingRepository builds a repository. bulk may be nil when Import is
// not needed.
func NewListingRepository(conn *postgres.Connection, bulk postgres.TxBeginner, log logging.Logger) *ListingRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ListingRepository{conn: conn, bulk: bulk, log: log.Named("listing_repo")}
}

func (r *ListingRepository) executor() queryExecutor { return r.conn.DB() }

// Links returns the link for every name that has a row. Names without a row
// are absent from the map.
func (r *ListingRepository) Links(ctx context.Context, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	if len(names) == 0 {
		return out, nil
	}

	rows, err := r.executor().QueryContext(ctx,
		`SELECT property_name, link FROM listings WHERE property_name = ANY($1)`, pq.Array(names))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query listings")
	}
	defer rows.Close()

	for rows.Next() {
		var name, link string
		if err := rows.Scan(&name, &link); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan listing")
		}
		out[name] = link
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate listings")
	}
	r.log.Debug("listings fetched", logging.Int("requested", len(names)), logging.Int("found", len(out)))
	return out, nil
}

func (r *ListingRepository) Get(ctx context.Context, name string) (*Listing, error) {
	row := r.executor().QueryRowContext(ctx,
		`SELECT property_name, link, updated_at FROM listings WHERE property_name = $1`, name)
	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("listing not found").WithDetail(name)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to get listing")
	}
	return l, nil
}

// List pages through listings ordered by property name.
func (r *ListingRepository) List(ctx context.Context, limit, offset int) ([]Listing, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.executor().QueryContext(ctx,
		`SELECT property_name, link, updated_at FROM listings ORDER BY property_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list listings")
	}
	defer rows.Close()

	var out []Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan listing")
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (r *ListingRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.executor().QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count listings")
	}
	return n, nil
}

func (r *ListingRepository) Upsert(ctx context.Context, l Listing) error {
	if l.PropertyName == "" {
		return errors.InvalidParam("property name is required")
	}
	_, err := r.executor().ExecContext(ctx, `
		INSERT INTO listings (property_name, link, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (property_name) DO UPDATE SET link = EXCLUDED.link, updated_at = NOW()`,
		l.PropertyName, l.Link)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert listing").WithDetail(l.PropertyName)
	}
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, name string) error {
	res, err := r.executor().ExecContext(ctx, `DELETE FROM listings WHERE property_name = $1`, name)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete listing")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("listing not found").WithDetail(name)
	}
	return nil
}

// Import bulk-loads listings with COPY into a staging table and merges them
// in one transaction. It returns the number of rows inserted or updated.
func (r *ListingRepository) Import(ctx context.Context, listings []Listing) (int64, error) {
	if len(listings) == 0 {
		return 0, nil
	}
	if r.bulk == nil {
		return 0, errors.New(errors.ErrCodeNotImplemented, "bulk import requires a pgx pool")
	}

	rows := make([][]interface{}, 0, len(listings))
	for _, l := range listings {
		rows = append(rows, []interface{}{l.PropertyName, l.Link})
	}

	var merged int64
	err := postgres.WithTransaction(ctx, r.bulk, func(tx pgx.Tx, ctx context.Context) error {
		if _, err := tx.Exec(ctx,
			`CREATE TEMP TABLE listings_stage (property_name TEXT NOT NULL, link TEXT NOT NULL) ON COMMIT DROP`); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create staging table")
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"listings_stage"}, []string{"property_name", "link"},
			pgx.CopyFromRows(rows)); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to copy listings")
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO listings (property_name, link, updated_at)
			SELECT DISTINCT ON (property_name) property_name, link, NOW() FROM listings_stage
			ON CONFLICT (property_name) DO UPDATE SET link = EXCLUDED.link, updated_at = NOW()`)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to merge listings")
		}
		merged = tag.RowsAffected()
		return nil
	})
	if err != nil {
		r.log.Error("listing import failed", logging.Int("rows", len(listings)), logging.Err(err))
		return 0, err
	}
	r.log.Info("listings imported", logging.Int("rows", len(listings)), logging.Int64("merged", merged))
	return merged, nil
}

func scanListing(s scanner) (*Listing, error) {
	var l Listing
	if err := s.Scan(&l.PropertyName, &l.Link, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

//Personal.AI order the ending
