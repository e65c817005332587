package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createUsersTable,
		createEventsTable,
		createRegistrationsTable,
		createActiveRegistrationIndex,
		createRegistrationLookupIndexes,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    user_id SERIAL PRIMARY KEY,
    email VARCHAR(255) UNIQUE NOT NULL,
    password_hash VARCHAR(64) NOT NULL,
    name VARCHAR(200) NOT NULL,
    role VARCHAR(20) NOT NULL DEFAULT 'attendee',
    registered_at TIMESTAMP NOT NULL DEFAULT NOW(),
    is_active BOOLEAN NOT NULL DEFAULT TRUE,

    CHECK (role IN ('attendee', 'organizer', 'admin'))
);`

const createEventsTable = `
CREATE TABLE IF NOT EXISTS events (
    id SERIAL PRIMARY KEY,
    organizer_id INTEGER NOT NULL REFERENCES users(user_id),
    title VARCHAR(200) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'draft',
    starts_at TIMESTAMP NOT NULL,
    max_attendees INTEGER,
    current_attendees INTEGER NOT NULL DEFAULT 0,
    price BIGINT NOT NULL DEFAULT 0,
    currency VARCHAR(3) NOT NULL DEFAULT 'INR',
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),

    CHECK (status IN ('draft', 'published', 'completed', 'cancelled')),
    CHECK (current_attendees >= 0),
    CHECK (price >= 0)
);`

const createRegistrationsTable = `
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";
CREATE TABLE IF NOT EXISTS registrations (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
    attendee_id INTEGER NOT NULL REFERENCES users(user_id),
    status VARCHAR(20) NOT NULL DEFAULT 'registered',
    payment_status VARCHAR(20) NOT NULL DEFAULT 'free',
    payment_amount BIGINT NOT NULL DEFAULT 0,
    order_id VARCHAR(255),
    payment_id VARCHAR(255),
    registered_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),

    CHECK (status IN ('registered', 'cancelled', 'attended', 'no-show')),
    CHECK (payment_status IN ('pending', 'completed', 'refunded', 'free'))
);`

// Partial unique index: one active registration per (event, attendee),
// cancelled rows stay behind and never block re-registration.
const createActiveRegistrationIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS registrations_active_unique_idx
ON registrations (event_id, attendee_id)
WHERE status IN ('registered', 'attended', 'no-show');`

const createRegistrationLookupIndexes = `
CREATE INDEX IF NOT EXISTS registrations_attendee_status_idx
ON registrations (attendee_id, status);
CREATE INDEX IF NOT EXISTS registrations_event_status_idx
ON registrations (event_id, status);
CREATE INDEX IF NOT EXISTS registrations_order_id_idx
ON registrations (order_id);`
