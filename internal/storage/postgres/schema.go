package postgres

import (
	"context"
	"fmt"
)

// The no-overlap invariant lives in the exclusion constraint: two ACTIVE
// bookings on the same room may not have intersecting date ranges.
// daterange() is half-open, so back-to-back stays do not collide.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`CREATE TABLE IF NOT EXISTS hotels (
		id   text PRIMARY KEY,
		name text NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id                   text PRIMARY KEY,
		hotel_id             text NOT NULL REFERENCES hotels (id),
		room_number          text NOT NULL,
		room_type            text NOT NULL,
		base_price_per_night numeric NOT NULL CHECK (base_price_per_night >= 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rooms_hotel ON rooms (hotel_id)`,
	`CREATE TABLE IF NOT EXISTS add_ons (
		name            text PRIMARY KEY,
		price_per_night numeric NOT NULL CHECK (price_per_night >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id          text PRIMARY KEY,
		room_id     text NOT NULL REFERENCES rooms (id),
		hotel_id    text NOT NULL REFERENCES hotels (id),
		check_in    date NOT NULL,
		check_out   date NOT NULL,
		add_ons     jsonb NOT NULL DEFAULT '[]',
		total_price numeric NOT NULL,
		status      text NOT NULL,
		created_at  timestamptz NOT NULL,
		CHECK (check_out > check_in),
		CONSTRAINT bookings_no_overlap EXCLUDE USING gist (
			room_id WITH =,
			daterange(check_in, check_out) WITH &&
		) WHERE (status = 'ACTIVE')
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_room ON bookings (room_id)`,
}

// Migrate applies the schema. Statements are idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}

	db.l.LogInfo("postgres schema is up to date")

	return nil
}
