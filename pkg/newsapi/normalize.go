package newsapi

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic id generation
	"encoding/hex"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/samvad-news-desk/internal/domain"
)

// removedMarker is what the API puts in place of retracted articles.
const removedMarker = "[Removed]"

var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

type rawArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      *string `json:"author"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	URL         *string `json:"url"`
	URLToImage  *string `json:"urlToImage"`
	PublishedAt *string `json:"publishedAt"`
}

// DropStats counts raw entries rejected during normalization, keyed by reason.
type DropStats map[string]int

// Total returns the number of dropped entries.
func (d DropStats) Total() int {
	n := 0
	for _, v := range d {
		n += v
	}
	return n
}

// normalize validates and defaults raw entries. Order is preserved and the first entry per URL wins.
func normalize(raw []rawArticle) ([]domain.Article, DropStats) {
	out := make([]domain.Article, 0, len(raw))
	dropped := DropStats{}
	seen := make(map[string]struct{}, len(raw))

	for _, r := range raw {
		link := deref(r.URL)
		if link == "" {
			dropped["missing_url"]++
			continue
		}
		title := plainText(deref(r.Title))
		if title == removedMarker {
			dropped["removed"]++
			continue
		}
		published, ok := parsePublished(deref(r.PublishedAt))
		if !ok {
			dropped["bad_published_at"]++
			continue
		}
		if _, dup := seen[link]; dup {
			dropped["duplicate_url"]++
			continue
		}
		seen[link] = struct{}{}

		if title == "" {
			title = link
		}
		author := plainText(deref(r.Author))
		if author == "" {
			author = domain.UnknownAuthor
		}
		image := deref(r.URLToImage)
		if image == "" {
			image = domain.PlaceholderImageURL
		}

		out = append(out, domain.Article{
			ID:          hashURL(link),
			Title:       title,
			Description: plainText(deref(r.Description)),
			URL:         link,
			ImageURL:    image,
			Author:      author,
			SourceName:  strings.TrimSpace(r.Source.Name),
			PublishedAt: published.UTC(),
		})
	}
	return out, dropped
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func parsePublished(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// plainText strips markup some publishers leave in titles and descriptions.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapseSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseSpace(s)
	}
	return collapseSpace(doc.Text())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func hashURL(u string) string {
	sum := sha1.Sum([]byte(u))
	return hex.EncodeToString(sum[:])
}
