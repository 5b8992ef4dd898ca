package web

import (
	"strings"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-news-desk/internal/controller"
	"github.com/samvad-hq/samvad-news-desk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"short untouched", "hello", 10, "hello"},
		{"exact length untouched", "abcde", 5, "abcde"},
		{"cut with ellipsis", "abcdefgh", 5, "abcde…"},
		{"trailing space trimmed before ellipsis", "abcd efgh", 5, "abcd…"},
		{"runes not bytes", "ñññññññ", 3, "ñññ…"},
		{"zero limit disables", "abc", 0, "abc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Truncate(tc.in, tc.limit))
		})
	}
}

func TestCardViewFallbacks(t *testing.T) {
	card := newCardView(domain.Article{Title: "T", URL: "https://x/1"})
	assert.Equal(t, noDescription, card.Description)
	assert.Equal(t, domain.PlaceholderImageURL, card.ImageURL)
	assert.Equal(t, domain.UnknownAuthor, card.Byline)

	published := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	card = newCardView(domain.Article{
		Title:       "T",
		Description: strings.Repeat("x", 150),
		ImageURL:    "https://img/1.jpg",
		Author:      "Jane Doe",
		PublishedAt: published,
	})
	assert.Equal(t, strings.Repeat("x", 100)+"…", card.Description)
	assert.Equal(t, "https://img/1.jpg", card.ImageURL)
	assert.Equal(t, "Jane Doe · Mar 5, 2024", card.Byline)
}

func TestPageViewStates(t *testing.T) {
	view := newPageView(controller.Snapshot{Status: controller.StatusLoading, Articles: []domain.Article{}})
	assert.True(t, view.Loading)
	assert.False(t, view.Empty, "loading page must not claim no news")

	view = newPageView(controller.Snapshot{Status: controller.StatusSucceeded, Query: "ai", Articles: []domain.Article{}})
	assert.True(t, view.Empty)
	assert.Contains(t, view.Heading, "ai")

	view = newPageView(controller.Snapshot{
		Status:   controller.StatusFailed,
		Error:    "boom",
		Articles: []domain.Article{{ID: "1", Title: "kept"}},
	})
	require.Len(t, view.Cards, 1)
	assert.True(t, view.Failed)
	assert.Equal(t, "boom", view.Error)
	assert.False(t, view.Empty)
}
