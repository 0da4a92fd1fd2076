package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hctx-dev/hctx/pkg/hctx"
	"github.com/hctx-dev/hctx/pkg/render"
	"github.com/hctx-dev/hctx/pkg/vdom"
)

// Config configures the devtools server.
type Config struct {
	// Hub receives dispatch records. Register the same Hub in the runtime's
	// Config.Observers; without one /debug/events and /debug/dispatches
	// return 404.
	Hub *Hub

	// Gatherer backs /metrics. Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Logger for request and server logs. Default: slog.Default().
	Logger *slog.Logger

	// ShutdownTimeout bounds graceful shutdown. Default: 5s.
	ShutdownTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Gatherer == nil {
		c.Gatherer = prometheus.DefaultGatherer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	return c
}

// Server exposes a runtime's state over HTTP:
//
//	GET /                    index of endpoints
//	GET /metrics             Prometheus metrics
//	GET /debug/contexts      runtime snapshot as JSON
//	GET /debug/tree          the live document as annotated HTML
//	GET /debug/dispatches    recent dispatch records as JSON
//	GET /debug/events        websocket stream of dispatch records
type Server struct {
	rt     *hctx.Runtime
	doc    *vdom.Document
	cfg    Config
	router chi.Router
}

// New creates a devtools server for rt and the document it runs on.
func New(rt *hctx.Runtime, doc *vdom.Document, cfg Config) *Server {
	s := &Server{rt: rt, doc: doc, cfg: cfg.withDefaults()}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(s.logRequests)

	r.Get("/", s.handleIndex)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	r.Route("/debug", func(r chi.Router) {
		r.Get("/contexts", s.handleContexts)
		r.Get("/tree", s.handleTree)
		r.Get("/dispatches", s.handleDispatches)
		r.Get("/events", s.handleEvents)
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.cfg.Logger.Info("devtools listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.cfg.Hub != nil {
		s.cfg.Hub.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.cfg.Logger.Debug("devtools request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"metrics":    "/metrics",
		"contexts":   "/debug/contexts",
		"tree":       "/debug/tree",
		"dispatches": "/debug/dispatches",
		"events":     "/debug/events",
	})
}

func (s *Server) handleContexts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rt.Snapshot())
}

// handleTree renders the document with bound nodes marked by
// data-hc-bound and context markers by data-hc-instance.
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	annotate := func(n *vdom.VNode) map[string]string {
		if n == nil {
			return nil
		}
		bound, key := s.rt.NodeState(n)
		if !bound && key == "" {
			return nil
		}
		out := make(map[string]string, 2)
		if bound {
			out["data-hc-bound"] = ""
		}
		if key != "" {
			out["data-hc-instance"] = key
		}
		return out
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	sr := render.NewStreamingRenderer(w, render.RendererConfig{
		Pretty:   r.URL.Query().Get("pretty") != "0",
		Annotate: annotate,
	})
	err := sr.RenderPage(render.PageData{
		Title:  "hctx tree",
		Body:   s.doc.Body(),
		Styles: []string{treeStyles},
	})
	if err != nil {
		s.cfg.Logger.Warn("devtools tree render failed", "error", err)
	}
}

const treeStyles = `[data-hc-bound]{outline:1px dashed #c60}[data-hc-instance]{outline:1px solid #06c}`

func (s *Server) handleDispatches(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Hub == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Hub.History())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Hub == nil {
		http.NotFound(w, r)
		return
	}
	s.cfg.Hub.HandleWebSocket(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
