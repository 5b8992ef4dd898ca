package web

import (
	"strings"
	"unicode/utf8"

	"github.com/samvad-hq/samvad-news-desk/internal/controller"
	"github.com/samvad-hq/samvad-news-desk/internal/domain"
)

const (
	descriptionLimit  = 100
	noDescription     = "No description available"
	publishedLayout   = "Jan 2, 2006"
	ellipsis          = "…"
	bylineSeparator   = " · "
	defaultPageHeader = "Top headlines"
)

type cardView struct {
	Title       string
	Description string
	URL         string
	ImageURL    string
	Byline      string
}

type pageView struct {
	Heading string
	Query   string
	Status  string
	Loading bool
	Failed  bool
	Error   string
	Empty   bool
	Cards   []cardView
}

// Truncate shortens s to at most limit runes, appending an ellipsis when cut.
func Truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return strings.TrimRight(string(r[:limit]), " ") + ellipsis
}

func newCardView(a domain.Article) cardView {
	desc := Truncate(a.Description, descriptionLimit)
	if desc == "" {
		desc = noDescription
	}
	img := a.ImageURL
	if !a.HasImage() {
		img = domain.PlaceholderImageURL
	}
	author := strings.TrimSpace(a.Author)
	if author == "" {
		author = domain.UnknownAuthor
	}
	byline := author
	if !a.PublishedAt.IsZero() {
		byline += bylineSeparator + a.PublishedAt.Format(publishedLayout)
	}
	return cardView{
		Title:       a.Title,
		Description: desc,
		URL:         a.URL,
		ImageURL:    img,
		Byline:      byline,
	}
}

func newPageView(s controller.Snapshot) pageView {
	view := pageView{
		Heading: defaultPageHeader,
		Query:   s.Query,
		Status:  s.Status.String(),
		Loading: s.Loading(),
		Failed:  s.Status == controller.StatusFailed,
		Error:   s.Error,
		Cards:   make([]cardView, 0, len(s.Articles)),
	}
	if s.Query != "" {
		view.Heading = "Results for “" + s.Query + "”"
	}
	for _, a := range s.Articles {
		view.Cards = append(view.Cards, newCardView(a))
	}
	view.Empty = !view.Loading && len(view.Cards) == 0
	return view
}
