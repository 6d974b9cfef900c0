package routing_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-modular/framework/routing"
)

func newRouter(t *testing.T) (*routing.Router, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	return routing.New(logger), hook
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func ok(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(body)) }
}

// ── HTTP verbs ───────────────────────────────────────────────────────────────

func TestRouter_Verbs(t *testing.T) {
	r, _ := newRouter(t)
	r.Get("/items", ok("get"))
	r.Post("/items", ok("post"))
	r.Put("/items", ok("put"))
	r.Delete("/items", ok("delete"))

	for method, want := range map[string]string{
		http.MethodGet: "get", http.MethodPost: "post", http.MethodPut: "put", http.MethodDelete: "delete",
	} {
		rec := serve(r, method, "/items")
		assert.Equal(t, http.StatusOK, rec.Code, method)
		assert.Equal(t, want, rec.Body.String(), method)
	}

	assert.Equal(t, http.StatusMethodNotAllowed, serve(r, http.MethodPatch, "/items").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/missing").Code)
}

// ── Prefix / Group / Param ───────────────────────────────────────────────────

func TestRouter_PrefixAndParam(t *testing.T) {
	r, _ := newRouter(t)
	r.Prefix("/modules", func(m *routing.Router) {
		m.Get("/{name}", func(w http.ResponseWriter, req *http.Request) {
			_, _ = w.Write([]byte(routing.Param(req, "name")))
		})
	})

	rec := serve(r, http.MethodGet, "/modules/files")
	assert.Equal(t, "files", rec.Body.String())
}

func TestRouter_GroupMiddleware(t *testing.T) {
	r, _ := newRouter(t)
	r.Get("/open", ok("open"))
	r.Group(func(g *routing.Router) {
		g.Middleware(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				w.Header().Set("X-Group", "yes")
				next.ServeHTTP(w, req)
			})
		})
		g.Get("/grouped", ok("grouped"))
	})

	assert.Empty(t, serve(r, http.MethodGet, "/open").Header().Get("X-Group"))
	assert.Equal(t, "yes", serve(r, http.MethodGet, "/grouped").Header().Get("X-Group"))
}

// ── Middleware ───────────────────────────────────────────────────────────────

func TestRouter_RecoversPanics(t *testing.T) {
	r, _ := newRouter(t)
	r.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })

	assert.Equal(t, http.StatusInternalServerError, serve(r, http.MethodGet, "/panic").Code)
}

func TestRouter_LogsRequests(t *testing.T) {
	r, hook := newRouter(t)
	r.Get("/logged", ok("x"))

	serve(r, http.MethodGet, "/logged")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "http request", entry.Message)
	assert.Equal(t, "/logged", entry.Data["path"])
	assert.Equal(t, http.StatusOK, entry.Data["status"])
	assert.NotEmpty(t, entry.Data["request_id"])
}

// ── Routes ───────────────────────────────────────────────────────────────────

func TestRouter_Routes(t *testing.T) {
	r, _ := newRouter(t)
	r.Get("/health", ok(""))
	r.Prefix("/files", func(f *routing.Router) {
		f.Post("/compare", ok(""))
		f.Get("/folders", ok(""))
	})

	assert.Equal(t, []routing.Route{
		{Method: "POST", Pattern: "/files/compare"},
		{Method: "GET", Pattern: "/files/folders"},
		{Method: "GET", Pattern: "/health"},
	}, r.Routes())
}

func TestRouter_Handler(t *testing.T) {
	r, _ := newRouter(t)
	r.Get("/", ok("root"))
	assert.Equal(t, "root", serve(r.Handler(), http.MethodGet, "/").Body.String())
}
