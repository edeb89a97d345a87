// Package seed inserts reference data for local development, in the
// shape of go-mizu-mizu's localbase blueprint seeders: a handful of
// realistic rows, idempotent via ON CONFLICT DO NOTHING.
package seed

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Run inserts a handful of partners, products and units, skipping any
// row whose id is already present. Not part of the core sync engine (spec
// sec 1 "out of scope"); exists so cmd/syncserver is runnable against
// an empty database.
func Run(ctx context.Context, pool *pgxpool.Pool) error {
	partners := []struct {
		id, name, code string
		kind           int
	}{
		{"11111111-1111-1111-1111-111111111111", "Acme Distribution", "ACME", 1},
		{"22222222-2222-2222-2222-222222222222", "Northwind Supply", "NRTH", 2},
	}
	for _, p := range partners {
		if _, err := pool.Exec(ctx, `
			INSERT INTO partners (id, name, code, type) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING`, uuid.MustParse(p.id), p.name, p.code, p.kind); err != nil {
			return errors.Wrap(err, "seeding partners")
		}
	}

	products := []struct{ id, name, shortName, sku, code string }{
		{"33333333-3333-3333-3333-333333333333", "Corrugated Box 24x18x18", "Box L", "BOX-L", "P-100"},
		{"44444444-4444-4444-4444-444444444444", "Stretch Wrap Film", "Film", "WRAP-1", "P-200"},
	}
	for _, p := range products {
		if _, err := pool.Exec(ctx, `
			INSERT INTO products (id, name, short_name, sku, code) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING`, uuid.MustParse(p.id), p.name, p.shortName, p.sku, p.code); err != nil {
			return errors.Wrap(err, "seeding products")
		}
	}

	units := []struct{ id, name, abbr string }{
		{"55555555-5555-5555-5555-555555555555", "Each", "ea"},
		{"66666666-6666-6666-6666-666666666666", "Pallet", "plt"},
	}
	for _, u := range units {
		if _, err := pool.Exec(ctx, `
			INSERT INTO units (id, name, abbreviation) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING`, uuid.MustParse(u.id), u.name, u.abbr); err != nil {
			return errors.Wrap(err, "seeding units")
		}
	}

	log.Info("reference data seeded")
	return nil
}
