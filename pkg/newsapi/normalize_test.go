package newsapi

import (
	"testing"

	"github.com/samvad-hq/samvad-news-desk/internal/domain"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestNormalizeDropsInvalidEntries(t *testing.T) {
	raw := []rawArticle{
		{Title: strp("no url"), PublishedAt: strp("2024-01-01T00:00:00Z")},
		{Title: strp("[Removed]"), URL: strp("https://removed.com"), PublishedAt: strp("2024-01-01T00:00:00Z")},
		{Title: strp("bad date"), URL: strp("https://example.com/x"), PublishedAt: strp("yesterday")},
		{Title: strp("keep"), URL: strp("https://example.com/a"), PublishedAt: strp("2024-01-01T00:00:00Z")},
		{Title: strp("dup"), URL: strp("https://example.com/a"), PublishedAt: strp("2024-01-02T00:00:00Z")},
	}

	articles, dropped := normalize(raw)
	require.Len(t, articles, 1)
	require.Equal(t, "keep", articles[0].Title)
	require.Equal(t, 4, dropped.Total())
	require.Equal(t, 1, dropped["missing_url"])
	require.Equal(t, 1, dropped["removed"])
	require.Equal(t, 1, dropped["bad_published_at"])
	require.Equal(t, 1, dropped["duplicate_url"])
}

func TestNormalizeDefaultsOptionalFields(t *testing.T) {
	raw := []rawArticle{{URL: strp(" https://example.com/a "), PublishedAt: strp("2024-01-01 08:00:00")}}

	articles, _ := normalize(raw)
	require.Len(t, articles, 1)
	a := articles[0]
	require.Equal(t, "https://example.com/a", a.URL)
	require.Equal(t, "https://example.com/a", a.Title)
	require.Equal(t, domain.UnknownAuthor, a.Author)
	require.Equal(t, domain.PlaceholderImageURL, a.ImageURL)
	require.False(t, a.HasImage())
	require.Equal(t, hashURL("https://example.com/a"), a.ID)
}

func TestPlainTextStripsMarkup(t *testing.T) {
	require.Equal(t, "Hello world", plainText("  Hello \n  world "))
	require.Equal(t, "Bold & plain", plainText("<b>Bold</b> &amp; plain"))
	require.Equal(t, "", plainText(""))
}
