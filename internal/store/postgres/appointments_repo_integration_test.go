package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"slotline/backend/internal/domain"
	"slotline/backend/internal/store"
)

func TestPostgresIntegration_BookingOverlapIdempotencyAndReschedule(t *testing.T) {
	databaseURL := strings.TrimSpace(os.Getenv("SLOTLINE_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("SLOTLINE_TEST_DATABASE_URL not set")
	}

	admin, err := Open(databaseURL, PoolConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(admin)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schema := "slotline_test_" + randomHex(t, 8)
	if _, err := admin.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = admin.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
	})

	db, err := Open(databaseURL, PoolConfig{MaxOpenConns: 2, SearchPath: schema})
	if err != nil {
		t.Fatalf("Open scoped error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	applied, err := Migrate(ctx, db)
	if err != nil {
		t.Fatalf("Migrate error: %v", err)
	}
	if len(applied) != 1 || applied[0] != "00001_scheduling" {
		t.Fatalf("applied = %v, want [00001_scheduling]", applied)
	}
	again, err := Migrate(ctx, db)
	if err != nil {
		t.Fatalf("second Migrate error: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second Migrate applied %v, want nothing", again)
	}

	providerID := uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	serviceID := uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
	locationID := uuid.MustParse("00000000-0000-0000-0000-0000000000c1")

	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&domain.Provider{
			ID: providerID, TenantID: uuid.New(), LocationID: locationID, DisplayName: "p", Active: true, CreatedAt: time.Now().UTC(),
		}).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(&domain.ServiceSpec{
			ID: serviceID, LocationID: locationID, Name: "cut", DurationMinutes: 60, Price: decimal.NewFromInt(30), Currency: "USD", Active: true, CreatedAt: time.Now().UTC(),
		}).Exec(ctx); err != nil {
			return err
		}

		b := bookingTx{tx: tx}
		start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
		booking := func(id string, start time.Time) domain.Appointment {
			return domain.Appointment{
				ID:              uuid.MustParse(id),
				LocationID:      locationID,
				ProviderID:      providerID,
				ServiceID:       serviceID,
				ClientRef:       "client-1",
				Status:          domain.StatusConfirmed,
				StartAt:         start,
				EndAt:           start.Add(time.Hour),
				DurationMinutes: 60,
				Price:           decimal.NewFromInt(30),
				Currency:        "USD",
				Source:          domain.SourceManual,
			}
		}

		a1, err := b.InsertAppointment(ctx, booking("00000000-0000-0000-0000-000000000901", start))
		if err != nil {
			return err
		}

		rows, err := b.ListConfirmedOverlapping(ctx, providerID, start.Add(-time.Minute), start.Add(time.Minute), uuid.Nil)
		if err != nil {
			return err
		}
		if len(rows) != 1 || rows[0].ID != a1.ID {
			return fmt.Errorf("overlapping rows = %+v, want only %s", rows, a1.ID)
		}

		_, err = b.InsertAppointment(ctx, booking("00000000-0000-0000-0000-000000000902", start.Add(30*time.Minute)))
		if !errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("overlap err = %v, want %v", err, store.ErrConflict)
		}

		if _, err := b.InsertAppointment(ctx, booking("00000000-0000-0000-0000-000000000903", start.Add(time.Hour))); err != nil {
			return fmt.Errorf("back-to-back insert: %w", err)
		}

		replay, err := b.InsertAppointment(ctx, booking("00000000-0000-0000-0000-000000000901", start))
		if err != nil {
			return fmt.Errorf("replay: %w", err)
		}
		if replay.ID != a1.ID {
			return fmt.Errorf("replay id = %s, want %s", replay.ID, a1.ID)
		}

		different := booking("00000000-0000-0000-0000-000000000901", start)
		different.ClientRef = "someone-else"
		if _, err := b.InsertAppointment(ctx, different); !errors.Is(err, store.ErrIdempotencyConflict) {
			return fmt.Errorf("idempotency err = %v, want %v", err, store.ErrIdempotencyConflict)
		}

		locked, err := b.GetAppointmentForUpdate(ctx, a1.ID)
		if err != nil {
			return err
		}
		if err := locked.MoveTo(start.Add(90 * time.Minute)); err != nil {
			return err
		}
		if _, err := b.UpdateAppointment(ctx, locked); !errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("reschedule onto neighbour err = %v, want %v", err, store.ErrConflict)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx error: %v", err)
	}
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}
