package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-news-desk/internal/controller"
	"github.com/samvad-hq/samvad-news-desk/internal/domain"
	"github.com/samvad-hq/samvad-news-desk/internal/logger"
	"github.com/samvad-hq/samvad-news-desk/internal/storage"
	"github.com/samvad-hq/samvad-news-desk/pkg/publishers"
)

const (
	announceDelivered = "delivered"
	announceFailed    = "failed"
)

type snapshotSource interface {
	Changed() <-chan struct{}
	Done() <-chan struct{}
	Snapshot() controller.Snapshot
}

type eventSink interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

type announceMetrics interface {
	ArticlesAnnounced(result string, n int)
}

// Announcer publishes articles the first time they appear in a successful result set.
// Articles no sink accepted are left unrecorded and retried when they show up again.
type Announcer struct {
	src     snapshotSource
	ledger  storage.Ledger
	sink    eventSink
	metrics announceMetrics
	log     logger.Logger
	now     func() time.Time

	lastGeneration uint64
}

// NewAnnouncer wires an announcer; metrics may be nil.
func NewAnnouncer(src snapshotSource, ledger storage.Ledger, sink eventSink, metrics announceMetrics, log logger.Logger) (*Announcer, error) {
	if src == nil || ledger == nil || sink == nil {
		return nil, errors.New("announcer needs a snapshot source, ledger and sink")
	}
	return &Announcer{
		src:     src,
		ledger:  ledger,
		sink:    sink,
		metrics: metrics,
		log:     logger.OrNop(log),
		now:     time.Now,
	}, nil
}

// Run watches state changes until ctx is cancelled or the controller is disposed.
func (a *Announcer) Run(ctx context.Context) error {
	for {
		changed := a.src.Changed()
		if _, err := a.announce(ctx, a.src.Snapshot()); err != nil {
			a.log.WarnObj("announce failed", "announce_error", err.Error())
		}

		select {
		case <-ctx.Done():
			return nil
		case <-a.src.Done():
			return nil
		case <-changed:
		}
	}
}

// announce publishes the unseen articles of a newly completed successful generation.
func (a *Announcer) announce(ctx context.Context, snap controller.Snapshot) (int, error) {
	if snap.Status != controller.StatusSucceeded || snap.Completed <= a.lastGeneration {
		return 0, nil
	}
	a.lastGeneration = snap.Completed
	if len(snap.Articles) == 0 {
		return 0, nil
	}

	byID := make(map[string]domain.Article, len(snap.Articles))
	ids := make([]string, 0, len(snap.Articles))
	for _, art := range snap.Articles {
		if _, dup := byID[art.ID]; dup || art.ID == "" {
			continue
		}
		byID[art.ID] = art
		ids = append(ids, art.ID)
	}

	unseen, err := a.ledger.Unseen(ids)
	if err != nil {
		return 0, fmt.Errorf("filter announced articles: %w", err)
	}
	if len(unseen) == 0 {
		return 0, nil
	}

	var (
		delivered []string
		errs      []error
	)
	for _, id := range unseen {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		evt := publishers.NewEvent(snap.Completed, snap.Query, byID[id], a.now())
		n, err := a.sink.Publish(ctx, evt)
		if err != nil {
			errs = append(errs, err)
		}
		if n > 0 {
			delivered = append(delivered, id)
		}
	}

	if err := a.ledger.Record(delivered); err != nil {
		errs = append(errs, fmt.Errorf("record announced articles: %w", err))
	}
	a.observe(announceDelivered, len(delivered))
	a.observe(announceFailed, len(unseen)-len(delivered))

	a.log.InfoObj("articles announced", "announce_meta", map[string]any{
		"generation": snap.Completed,
		"query":      snap.Query,
		"unseen":     len(unseen),
		"delivered":  len(delivered),
	})
	return len(delivered), errors.Join(errs...)
}

func (a *Announcer) observe(result string, n int) {
	if a.metrics != nil {
		a.metrics.ArticlesAnnounced(result, n)
	}
}
