package domain

import "time"

// Domain contains core models shared by the news source, controller and presentation.

const (
	// PlaceholderImageURL is shown when an article has no usable image.
	PlaceholderImageURL = "https://via.placeholder.com/150"
	// UnknownAuthor is used when the source omits the author.
	UnknownAuthor = "Unknown"
)

// Article is a normalized news article. URL is required and unique within a result set.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"image_url"`
	Author      string    `json:"author"`
	SourceName  string    `json:"source_name,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// HasImage reports whether the article carries its own image rather than the placeholder.
func (a Article) HasImage() bool {
	return a.ImageURL != "" && a.ImageURL != PlaceholderImageURL
}

// CloneArticles returns a copy of the slice so callers cannot mutate shared result sets.
func CloneArticles(in []Article) []Article {
	if in == nil {
		return nil
	}
	out := make([]Article, len(in))
	copy(out, in)
	return out
}
