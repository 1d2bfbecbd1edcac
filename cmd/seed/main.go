package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/telehealth/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Bootstrap(context.Background(), pool); err != nil {
		log.Fatalf("bootstrap schema: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedDoctors(context.Background(), pool, 50)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedSlots(context.Background(), pool, doctorIDs, 14); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]int64, error) {
	log.Printf("seeding %d doctors", count)

	titles := []string{
		"Dermatologist",
		"Cardiologist",
		"General Practitioner",
		"Orthopedist",
		"Endocrinologist",
		"Neurologist",
		"Pediatrician",
		"Psychiatrist",
		"Ophthalmologist",
		"ENT Specialist",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		title := titles[gofakeit.Number(0, len(titles)-1)]
		rating := float64(gofakeit.Number(30, 50)) / 10

		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO doctors (first_name, last_name, title, bio, location, rating)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, gofakeit.FirstName(), gofakeit.LastName(), title,
			gofakeit.Sentence(12), gofakeit.City(), rating).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (first_name, last_name)
				VALUES ($1, $2)
			`, gofakeit.FirstName(), gofakeit.LastName())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

// seedSlots opens hourly 09:00-17:00 availability for each doctor over the
// next `days` days.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, doctorIDs []int64, days int) error {
	log.Printf("seeding slots for %d doctors over %d days", len(doctorIDs), days)

	start := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)

	for _, doctorID := range doctorIDs {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for day := 0; day < days; day++ {
			for hour := 9; hour < 17; hour++ {
				at := start.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
				_, err := tx.Exec(ctx, `
					INSERT INTO doctor_availability_slots (doctor_id, available_at, status)
					VALUES ($1, $2, 'available')
					ON CONFLICT (doctor_id, available_at) DO NOTHING
				`, doctorID, at)
				if err != nil {
					_ = tx.Rollback(ctx)
					return err
				}
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}

	log.Println("slots seeded")
	return nil
}
