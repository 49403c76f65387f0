package sqlstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/journey"
	"github.com/AccelByte/extend-marketing-automation/pkg/store"
	"github.com/AccelByte/extend-marketing-automation/pkg/store/storetest"
	"github.com/jmoiron/sqlx"
)

var dbCounter atomic.Int64

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:sqlstore_test_%d?mode=memory&cache=shared", dbCounter.Add(1))
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("sqlx.Open() error = %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	s, err := New(db)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
}

func TestMigrateUp_Idempotent(t *testing.T) {
	s := newTestStore(t)

	if err := MigrateUp(s.db); err != nil {
		t.Fatalf("MigrateUp() second run error = %v", err)
	}

	var count int
	if err := s.db.Get(&count, "SELECT COUNT(*) FROM migrations"); err != nil {
		t.Fatalf("count migrations error = %v", err)
	}
	if count != 1 {
		t.Errorf("migrations recorded = %d, expected 1", count)
	}
}

func TestMigrateUp_ChecksumMismatch(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.db.Exec("UPDATE migrations SET checksum = 'tampered'"); err != nil {
		t.Fatalf("tamper error = %v", err)
	}
	if err := MigrateUp(s.db); err == nil {
		t.Errorf("MigrateUp() with a tampered checksum error = nil, expected mismatch")
	}
}

func TestClaimDue_ConcurrentWorkersClaimOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	if err := s.SaveJourney(ctx, storetest.Journey("j1")); err != nil {
		t.Fatalf("SaveJourney() error = %v", err)
	}
	const participants = 20
	for i := 0; i < participants; i++ {
		p := journey.Participant{
			ID:             fmt.Sprintf("p%02d", i),
			JourneyID:      "j1",
			OrganizationID: "org1",
			UserID:         fmt.Sprintf("u%02d", i),
			Status:         journey.ParticipantActive,
			CurrentNodeID:  "mail",
			EnteredAt:      now,
			NextStepAt:     now,
		}
		if err := s.CreateParticipant(ctx, p, journey.LogEntry{
			JourneyID: "j1", ParticipantID: p.ID, NodeID: "start",
			EventType: journey.EventEntered, Status: journey.ParticipantActive, CreatedAt: now,
		}); err != nil {
			t.Fatalf("CreateParticipant() error = %v", err)
		}
	}

	var (
		mu    sync.Mutex
		seen  = make(map[string]string)
		wg    sync.WaitGroup
		dupes []string
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(worker string) {
			defer wg.Done()
			claimed, err := s.ClaimDue(ctx, now, worker, time.Minute, participants)
			if err != nil {
				t.Errorf("ClaimDue(%s) error = %v", worker, err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			for _, p := range claimed {
				if prev, ok := seen[p.ID]; ok {
					dupes = append(dupes, fmt.Sprintf("%s by %s and %s", p.ID, prev, worker))
				}
				seen[p.ID] = worker
			}
		}(fmt.Sprintf("w%d", w))
	}
	wg.Wait()

	if len(dupes) > 0 {
		t.Errorf("participants claimed twice: %v", dupes)
	}
	if len(seen) != participants {
		t.Errorf("claimed %d participants, expected %d", len(seen), participants)
	}
}

func TestOpen_UnsupportedScheme(t *testing.T) {
	if _, err := Open("mysql://localhost/db"); err == nil {
		t.Errorf("Open(mysql) error = nil, expected unsupported scheme")
	}
}
