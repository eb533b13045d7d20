// Package httpapi exposes the query engine over HTTP, behind a gin router,
// instead of requiring every caller to link the engine directly.
package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/kansindexer/ftsearch/internal/engine"
)

// DefaultK is the number of results returned by POST /query when the
// caller does not specify ?k=.
const DefaultK = 20

// DefaultTimeout bounds how long a single /query request may run before
// the handler responds 504, independent of how long the underlying Index
// happens to take.
const DefaultTimeout = 10 * time.Second

const indexPage = `<!doctype html>
<html>
<head><title>ftsearch</title></head>
<body>
<h1>ftsearch</h1>
<p>POST plain text to /query to search the index. Add ?scores=1 to include
the TF-IDF score alongside each path, and ?k=N to change the result count
(default 20).</p>
</body>
</html>
`

// Server wraps an open *engine.Index with a gin router. The Index is
// read-only from the server's perspective -- Server never triggers a
// re-index itself.
type Server struct {
	index   *engine.Index
	log     engine.LogSink
	timeout time.Duration
	router  *gin.Engine
}

// nopLogSink discards everything; used when New is called with a nil log.
type nopLogSink struct{}

func (nopLogSink) Infof(string, ...any)  {}
func (nopLogSink) Warnf(string, ...any)  {}
func (nopLogSink) Errorf(string, ...any) {}

// New builds a Server over an already-opened index. log may be nil, in
// which case the server logs nothing.
func New(index *engine.Index, log engine.LogSink) *Server {
	if log == nil {
		log = nopLogSink{}
	}
	return newServer(index, log)
}

func newServer(index *engine.Index, log engine.LogSink) *Server {
	s := &Server{index: index, log: log, timeout: DefaultTimeout}

	r := gin.Default()

	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexPage))
	})

	r.POST("/query", s.handleQuery)

	// Any other method against /query reports method-not-allowed rather
	// than gin's default 404, so clients see why the request failed.
	r.Match([]string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions, http.MethodConnect, http.MethodTrace}, "/query", func(c *gin.Context) {
		c.String(http.StatusMethodNotAllowed, "query endpoint accepts POST only\n")
	})

	s.router = r
	return s
}

// Handler returns the underlying http.Handler, for use with http.Server or
// httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the router on addr, blocking until it returns an
// error. It's reached through a Server so tests can exercise the handler
// without binding a socket.
func (s *Server) ListenAndServe(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) handleQuery(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.String(http.StatusInternalServerError, "read request body: %v\n", err)
		return
	}
	if !utf8.Valid(body) {
		c.String(http.StatusBadRequest, "request body is not valid UTF-8\n")
		return
	}

	k := DefaultK
	if raw := c.Query("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.String(http.StatusBadRequest, "k must be a positive integer\n")
			return
		}
		k = n
	}
	withScores := c.Query("scores") == "1"

	type queryOutcome struct {
		results []engine.Result
		err     error
	}
	done := make(chan queryOutcome, 1)
	go func() {
		results, err := s.index.Query(string(body), k)
		done <- queryOutcome{results: results, err: err}
	}()

	select {
	case <-ctx.Done():
		c.String(http.StatusGatewayTimeout, "query timed out\n")
	case out := <-done:
		if out.err != nil {
			s.log.Errorf("query failed: %v", out.err)
			c.String(http.StatusInternalServerError, "query failed\n")
			return
		}
		c.String(http.StatusOK, "%s", renderResults(out.results, withScores))
	}
}

func renderResults(results []engine.Result, withScores bool) string {
	var b strings.Builder
	for _, r := range results {
		if withScores {
			fmt.Fprintf(&b, "%s\t%g\n", r.Path, r.Score)
		} else {
			fmt.Fprintf(&b, "%s\n", r.Path)
		}
	}
	return b.String()
}
