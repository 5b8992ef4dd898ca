package publishers

import (
	"time"

	"github.com/samvad-hq/samvad-news-desk/internal/domain"
)

// Event is the payload announced downstream for an article first seen in a result set.
type Event struct {
	Generation  uint64         `json:"generation"`
	Query       string         `json:"query"`
	Article     domain.Article `json:"article"`
	AnnouncedAt time.Time      `json:"announced_at"`
}

// NewEvent builds an Event for an article surfaced by the fetch with the given generation.
func NewEvent(generation uint64, query string, article domain.Article, at time.Time) Event {
	if at.IsZero() {
		at = time.Now()
	}
	return Event{
		Generation:  generation,
		Query:       query,
		Article:     article,
		AnnouncedAt: at.UTC(),
	}
}

// attributes are the routing hints sent alongside the body on sinks that support them.
func (e Event) attributes() map[string]string {
	attrs := map[string]string{"article_id": e.Article.ID}
	if e.Query != "" {
		attrs["query"] = e.Query
	}
	return attrs
}
