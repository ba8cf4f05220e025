package adkchat

import "net/url"

// UnknownSourceTitle is used for citations whose grounding chunk has no title.
const UnknownSourceTitle = "Unknown Source"

// Citation is an external reference surfaced by the agent while grounding.
// Citations are unique by URL within a State.
type Citation struct {
	URL          string `json:"url" yaml:"url"`
	Title        string `json:"title" yaml:"title"`
	Domain       string `json:"domain" yaml:"domain"`
	Snippet      string `json:"snippet" yaml:"snippet"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty" yaml:"thumbnailUrl,omitempty"`
	FaviconURL   string `json:"faviconUrl,omitempty" yaml:"faviconUrl,omitempty"`
	Adopted      bool   `json:"adopted" yaml:"adopted"`
}

// NewCitation builds a citation for rawURL, deriving its domain.
// An empty title becomes UnknownSourceTitle.
func NewCitation(rawURL, title string) Citation {
	if title == "" {
		title = UnknownSourceTitle
	}
	return Citation{
		URL:    rawURL,
		Title:  title,
		Domain: DomainOf(rawURL),
	}
}

// DomainOf returns the host name of rawURL without port, or rawURL itself
// when it does not parse as an absolute URL with a host.
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}
