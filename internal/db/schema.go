package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Bootstrap creates the tables and indexes the scheduling core depends on.
// Statements are idempotent so every process can run this at startup.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS doctors (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT,
			first_name VARCHAR(100) NOT NULL,
			last_name VARCHAR(100) NOT NULL,
			title VARCHAR(100),
			bio TEXT,
			location VARCHAR(100),
			rating NUMERIC(3,1) NOT NULL DEFAULT 0.0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS patients (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT,
			first_name VARCHAR(100) NOT NULL,
			last_name VARCHAR(100) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS doctor_availability_slots (
			id BIGSERIAL PRIMARY KEY,
			doctor_id BIGINT NOT NULL REFERENCES doctors(id),
			available_at TIMESTAMPTZ NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'available'
				CHECK (status IN ('available', 'booked', 'expired')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (doctor_id, available_at)
		);

		CREATE TABLE IF NOT EXISTS appointments (
			id BIGSERIAL PRIMARY KEY,
			doctor_id BIGINT NOT NULL REFERENCES doctors(id),
			patient_id BIGINT NOT NULL REFERENCES patients(id),
			slot_time TIMESTAMPTZ NOT NULL,
			complain TEXT,
			status VARCHAR(20) NOT NULL DEFAULT 'pending'
				CHECK (status IN ('pending', 'confirmed', 'cancelled')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE UNIQUE INDEX IF NOT EXISTS appointments_active_slot_uq
			ON appointments (doctor_id, slot_time)
			WHERE status IN ('pending', 'confirmed');

		CREATE TABLE IF NOT EXISTS appointments_summary (
			id BIGSERIAL PRIMARY KEY,
			appointment_id BIGINT NOT NULL REFERENCES appointments(id),
			diagnosis TEXT,
			notes TEXT,
			prescription TEXT,
			follow_up_date TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS appointment_events (
			id BIGSERIAL PRIMARY KEY,
			event_type VARCHAR(50) NOT NULL,
			appointment_id BIGINT REFERENCES appointments(id),
			payload JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}

	return nil
}
