package storage

import (
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Add(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestBoltLedgerRecordsAndExpires(t *testing.T) {
	clock := &fakeNow{t: time.Unix(1_700_000_000, 0)}
	raw, err := NewLedger(TypeBBolt, filepath.Join(t.TempDir(), "nested", "announced.db"), Options{
		TTL:             time.Hour,
		CleanupInterval: 2 * time.Hour,
		Now:             clock.Now,
	})
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	ledger := raw.(*boltLedger)
	defer ledger.Close()

	unseen, err := ledger.Unseen([]string{"a", "b"})
	if err != nil || !reflect.DeepEqual(unseen, []string{"a", "b"}) {
		t.Fatalf("expected both unseen, got %v err=%v", unseen, err)
	}

	if err := ledger.Record([]string{"a"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	unseen, err = ledger.Unseen([]string{"a", "b"})
	if err != nil || !reflect.DeepEqual(unseen, []string{"b"}) {
		t.Fatalf("expected only b unseen, got %v err=%v", unseen, err)
	}

	clock.Add(61 * time.Minute)
	unseen, err = ledger.Unseen([]string{"a"})
	if err != nil || !reflect.DeepEqual(unseen, []string{"a"}) {
		t.Fatalf("expected a to expire, got %v err=%v", unseen, err)
	}

	if n, _ := ledger.count(); n != 1 {
		t.Fatalf("expected expired key kept until cleanup, got %d keys", n)
	}
	clock.Add(2 * time.Hour)
	if _, err := ledger.Unseen([]string{"z"}); err != nil {
		t.Fatalf("Unseen after cleanup interval: %v", err)
	}
	if n, _ := ledger.count(); n != 0 {
		t.Fatalf("expected cleanup to drop expired key, got %d keys", n)
	}
}

func TestBoltLedgerSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "announced.db")
	first, err := NewLedger(TypeBBolt, path, Options{})
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	if err := first.Record([]string{"id1"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := NewLedger(TypeBBolt, path, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	unseen, err := second.Unseen([]string{"id1"})
	if err != nil || len(unseen) != 0 {
		t.Fatalf("expected id1 remembered, got %v err=%v", unseen, err)
	}
}

func TestMemoryLedgerExpires(t *testing.T) {
	clock := &fakeNow{t: time.Unix(1_700_000_000, 0)}
	ledger, err := NewLedger("none", "", Options{TTL: time.Minute, Now: clock.Now})
	if err != nil {
		t.Fatalf("NewLedger none: %v", err)
	}
	if err := ledger.Record([]string{"x"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if unseen, _ := ledger.Unseen([]string{"x", "y"}); !reflect.DeepEqual(unseen, []string{"y"}) {
		t.Fatalf("unexpected unseen %v", unseen)
	}
	clock.Add(2 * time.Minute)
	if unseen, _ := ledger.Unseen([]string{"x"}); !reflect.DeepEqual(unseen, []string{"x"}) {
		t.Fatalf("expected x to expire, got %v", unseen)
	}
}

func TestNewLedgerRejectsUnknownType(t *testing.T) {
	if _, err := NewLedger("redis", "", Options{}); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
	if _, err := NewLedger(TypeBBolt, " ", Options{}); err == nil {
		t.Fatalf("expected error for missing bbolt path")
	}
}
