// Package mockapi is an in-memory implementation of the crawl backend's HTTP
// contract. It backs local development (crawldash mock-api) and the client tests.
package mockapi

import (
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"crawldash/internal/domain"
)

// Options configures the mock backend.
type Options struct {
	// Token is the bearer credential every request must carry.
	Token string
	// RunDuration is how long a started crawl stays running before it
	// completes. Zero leaves crawls running until Complete is called.
	RunDuration time.Duration
}

type entry struct {
	record domain.URLRecord
	result *domain.CrawlResult
}

// Server holds the mock state.
type Server struct {
	opts   Options
	log    logrus.FieldLogger
	now    func() time.Time
	mu     sync.Mutex
	nextID int64
	urls   map[int64]*entry
	calls  []Call
}

// Call records one request for assertions in tests.
type Call struct {
	Method string
	Path   string
}

// New creates an empty backend.
func New(opts Options, logger logrus.FieldLogger) *Server {
	return &Server{
		opts:   opts,
		log:    logger.WithField("component", "mock_api"),
		now:    time.Now,
		nextID: 1,
		urls:   make(map[int64]*entry),
	}
}

// Handler builds the gin engine with the backend's routes.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.recordCalls())

	api := r.Group("/api")
	api.Use(s.authRequired())
	{
		api.GET("/urls", s.listURLs)
		api.POST("/urls", s.addURL)
		api.POST("/urls/:id/start", s.startCrawl)
		api.GET("/urls/:id/status", s.getStatus)
		api.DELETE("/urls/:id/delete", s.deleteURL)
	}
	return r
}

// Calls returns every request seen so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Seed inserts records as-is, e.g. fixtures for tests. Ids are kept.
func (s *Server) Seed(records ...domain.URLRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.urls[r.ID] = &entry{record: r}
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
	}
}

// Complete finishes a running crawl with result. A nil result marks it as failed.
func (s *Server) Complete(id int64, result *domain.CrawlResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.urls[id]
	if !ok || e.record.Status != domain.StatusRunning {
		return false
	}
	if result == nil {
		e.record.Status = domain.StatusError
		return true
	}
	e.record.Status = domain.StatusDone
	e.record.Title = result.Title
	e.result = result
	return true
}

// --- Middleware ---

func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or malformed token"})
			return
		}
		if strings.TrimPrefix(auth, "Bearer ") != s.opts.Token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		c.Next()
	}
}

func (s *Server) recordCalls() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		s.calls = append(s.calls, Call{Method: c.Request.Method, Path: c.Request.URL.Path})
		s.mu.Unlock()
		c.Next()
	}
}

// --- Handlers ---

func (s *Server) listURLs(c *gin.Context) {
	s.mu.Lock()
	out := make([]domain.URLRecord, 0, len(s.urls))
	for _, e := range s.urls {
		out = append(out, e.record)
	}
	s.mu.Unlock()

	// newest first, as the real backend orders by created_at DESC
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt.Time) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt.Time)
	})
	c.JSON(http.StatusOK, gin.H{"urls": out})
}

func (s *Server) addURL(c *gin.Context) {
	var input struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || strings.TrimSpace(input.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if u, err := url.Parse(input.URL); err != nil || u.Scheme == "" || u.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid URL format"})
		return
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.urls[id] = &entry{record: domain.URLRecord{
		ID:        id,
		URL:       input.URL,
		Status:    domain.StatusQueued,
		CreatedAt: domain.NewTimestamp(s.now().UTC()),
	}}
	s.mu.Unlock()

	s.log.WithField("id", id).Info("URL added")
	c.JSON(http.StatusOK, gin.H{"message": "URL added"})
}

func (s *Server) startCrawl(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	s.mu.Lock()
	e, found := s.urls[id]
	var target string
	if found {
		started := domain.NewTimestamp(s.now().UTC())
		e.record.Status = domain.StatusRunning
		e.record.LastRunAt = &started
		target = e.record.URL
	}
	s.mu.Unlock()

	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "URL not found"})
		return
	}
	s.log.WithField("id", id).Info("Crawl started")
	if s.opts.RunDuration > 0 {
		time.AfterFunc(s.opts.RunDuration, func() { s.Complete(id, syntheticResult(target)) })
	}
	c.JSON(http.StatusOK, gin.H{"message": "Crawl started"})
}

func (s *Server) getStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	s.mu.Lock()
	e, found := s.urls[id]
	var status domain.URLStatus
	if found {
		status.Status = e.record.Status
		if e.result != nil {
			status.Results = *e.result
		}
	}
	s.mu.Unlock()

	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "URL not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) deleteURL(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	s.mu.Lock()
	_, found := s.urls[id]
	delete(s.urls, id)
	s.mu.Unlock()

	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "URL not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "URL deleted"})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// syntheticResult fabricates a plausible analysis so the dashboard has something to show.
func syntheticResult(target string) *domain.CrawlResult {
	host := target
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		host = u.Host
	}
	version := "HTML5"
	title := host
	h1, h2, internal, external, broken := 1, 3, 12, 4, 1
	login := false
	return &domain.CrawlResult{
		HTMLVersion:   &version,
		Title:         &title,
		H1Count:       &h1,
		H2Count:       &h2,
		InternalLinks: &internal,
		ExternalLinks: &external,
		BrokenLinks:   &broken,
		HasLoginForm:  &login,
		BrokenDetails: []domain.BrokenLink{{URL: target + "/missing", StatusCode: http.StatusNotFound}},
	}
}
