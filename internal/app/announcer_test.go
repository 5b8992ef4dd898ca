package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-news-desk/internal/controller"
	"github.com/samvad-hq/samvad-news-desk/internal/domain"
	"github.com/samvad-hq/samvad-news-desk/internal/storage"
	"github.com/samvad-hq/samvad-news-desk/pkg/publishers"
)

type fakeSnapshots struct {
	mu      sync.Mutex
	snap    controller.Snapshot
	changed chan struct{}
	done    chan struct{}
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{changed: make(chan struct{}), done: make(chan struct{})}
}

func (f *fakeSnapshots) set(s controller.Snapshot) {
	f.mu.Lock()
	f.snap = s
	close(f.changed)
	f.changed = make(chan struct{})
	f.mu.Unlock()
}

func (f *fakeSnapshots) Changed() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changed
}

func (f *fakeSnapshots) Done() <-chan struct{} { return f.done }

func (f *fakeSnapshots) Snapshot() controller.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

type recordingSink struct {
	mu     sync.Mutex
	events []publishers.Event
	fail   map[string]bool
}

func (r *recordingSink) Publish(_ context.Context, evt publishers.Event) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[evt.Article.ID] {
		return 0, errors.New("sink rejected")
	}
	r.events = append(r.events, evt)
	return 1, nil
}

func (r *recordingSink) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Article.ID)
	}
	return out
}

type countingMetrics struct {
	counts map[string]int
}

func (c *countingMetrics) ArticlesAnnounced(result string, n int) {
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[result] += n
}

func articles(ids ...string) []domain.Article {
	out := make([]domain.Article, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Article{ID: id, Title: "t-" + id, URL: "https://x/" + id})
	}
	return out
}

func newTestAnnouncer(t *testing.T, sink *recordingSink) (*Announcer, *countingMetrics) {
	t.Helper()
	ledger, err := storage.NewLedger(storage.TypeMemory, "", storage.Options{})
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })
	m := &countingMetrics{}
	a, err := NewAnnouncer(newFakeSnapshots(), ledger, sink, m, nil)
	if err != nil {
		t.Fatalf("NewAnnouncer: %v", err)
	}
	a.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return a, m
}

func TestAnnouncePublishesOnlyUnseenArticles(t *testing.T) {
	sink := &recordingSink{}
	a, m := newTestAnnouncer(t, sink)
	ctx := context.Background()

	n, err := a.announce(ctx, controller.Snapshot{Status: controller.StatusSucceeded, Completed: 1, Articles: articles("a", "b")})
	if err != nil || n != 2 {
		t.Fatalf("first announce: n=%d err=%v", n, err)
	}

	n, _ = a.announce(ctx, controller.Snapshot{Status: controller.StatusSucceeded, Completed: 1, Articles: articles("a", "b", "c")})
	if n != 0 {
		t.Fatalf("same generation must not be announced twice, got %d", n)
	}

	n, _ = a.announce(ctx, controller.Snapshot{Status: controller.StatusSucceeded, Completed: 2, Query: "go", Articles: articles("b", "c")})
	if n != 1 {
		t.Fatalf("expected only c announced, got %d", n)
	}

	got := sink.ids()
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected announced ids %v", got)
	}
	if sink.events[2].Generation != 2 || sink.events[2].Query != "go" {
		t.Fatalf("event missing generation/query: %#v", sink.events[2])
	}
	if m.counts[announceDelivered] != 3 {
		t.Fatalf("expected 3 delivered in metrics, got %v", m.counts)
	}
}

func TestAnnounceIgnoresNonSuccessStates(t *testing.T) {
	sink := &recordingSink{}
	a, _ := newTestAnnouncer(t, sink)

	for _, st := range []controller.Status{controller.StatusIdle, controller.StatusLoading, controller.StatusFailed} {
		if n, err := a.announce(context.Background(), controller.Snapshot{Status: st, Completed: 5, Articles: articles("a")}); n != 0 || err != nil {
			t.Fatalf("status %s: expected no announce, got n=%d err=%v", st, n, err)
		}
	}
	if len(sink.ids()) != 0 {
		t.Fatalf("expected nothing published")
	}
}

func TestAnnounceRetriesUndeliveredArticles(t *testing.T) {
	sink := &recordingSink{fail: map[string]bool{"b": true}}
	a, m := newTestAnnouncer(t, sink)
	ctx := context.Background()

	n, err := a.announce(ctx, controller.Snapshot{Status: controller.StatusSucceeded, Completed: 1, Articles: articles("a", "b")})
	if err == nil || n != 1 {
		t.Fatalf("expected partial delivery with error, n=%d err=%v", n, err)
	}
	if m.counts[announceFailed] != 1 {
		t.Fatalf("expected 1 failed in metrics, got %v", m.counts)
	}

	sink.mu.Lock()
	sink.fail = nil
	sink.mu.Unlock()
	n, err = a.announce(ctx, controller.Snapshot{Status: controller.StatusSucceeded, Completed: 2, Articles: articles("a", "b")})
	if err != nil || n != 1 {
		t.Fatalf("expected b retried, n=%d err=%v", n, err)
	}
}

func TestAnnouncerRunFollowsChangesUntilDone(t *testing.T) {
	src := newFakeSnapshots()
	ledger, _ := storage.NewLedger(storage.TypeMemory, "", storage.Options{})
	sink := &recordingSink{}
	a, err := NewAnnouncer(src, ledger, sink, nil, nil)
	if err != nil {
		t.Fatalf("NewAnnouncer: %v", err)
	}

	finished := make(chan error, 1)
	go func() { finished <- a.Run(context.Background()) }()

	src.set(controller.Snapshot{Status: controller.StatusSucceeded, Completed: 1, Articles: articles("x")})

	deadline := time.After(2 * time.Second)
	for len(sink.ids()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("announcer never published")
		case <-time.After(5 * time.Millisecond):
		}
	}

	close(src.done)
	select {
	case err := <-finished:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not exit after dispose")
	}
}

func TestNewAnnouncerValidates(t *testing.T) {
	if _, err := NewAnnouncer(nil, nil, nil, nil, nil); err == nil {
		t.Fatalf("expected validation error")
	}
}
