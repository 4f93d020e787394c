package domain

// BrokenLink is a link found on the crawled page that answered with an error status.
type BrokenLink struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
}

// CrawlResult holds the analysis of the latest completed crawl.
// Every scalar is nullable because the backend reports an all-null row until a crawl finishes.
type CrawlResult struct {
	HTMLVersion   *string      `json:"html_version"`
	Title         *string      `json:"title"`
	H1Count       *int         `json:"h1_count"`
	H2Count       *int         `json:"h2_count"`
	InternalLinks *int         `json:"internal_links"`
	ExternalLinks *int         `json:"external_links"`
	BrokenLinks   *int         `json:"broken_links"`
	HasLoginForm  *bool        `json:"has_login_form"`
	BrokenDetails []BrokenLink `json:"broken_details"`
}

// URLStatus is the payload of GET /api/urls/{id}/status.
type URLStatus struct {
	Status  Status      `json:"status"`
	Results CrawlResult `json:"results"`
}

// Processing reports whether the crawl has not produced results yet.
func (s URLStatus) Processing() bool {
	return !s.Status.Finished()
}

// Int dereferences n, returning 0 when it is absent.
func Int(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

// StringOr dereferences s, returning def when it is absent or empty.
func StringOr(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}
