package web

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"

	"github.com/the-maldridge/aptsnap/pkg/storage"
)

// New initializes the server with its default routers.
func New(l hclog.Logger) (*Server, error) {
	s := Server{
		l: l.Named("web"),
		r: chi.NewRouter(),
		n: &http.Server{},
	}

	s.r.Use(middleware.Logger)
	s.r.Use(middleware.Heartbeat("/healthz"))

	s.r.Get("/", s.rootIndex)

	return &s, nil
}

// Serve binds, initializes the mux, and serves forever.
func (s *Server) Serve(bind string) error {
	s.l.Info("HTTP is starting")
	s.n.Addr = bind
	s.n.Handler = s.r
	return s.n.ListenAndServe()
}

func (s *Server) rootIndex(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "aptsnap is running, check other handlers for more information")
}

// Mount attaches a set of routes to the subpath specified by the
// path argument.
func (s *Server) Mount(path string, router chi.Router) {
	s.r.Mount(path, router)
}

// ServeRepo exposes the built repository tree read-only under path,
// which lets a target host on the same network pull the snapshot
// without physical media.
func (s *Server) ServeRepo(path, root string) {
	fs := http.StripPrefix(path, http.FileServer(http.Dir(root)))
	s.r.Handle(path+"/*", fs)
	s.l.Info("Serving repository", "path", path, "root", root)
}

// NewStatusRouter serves the persisted summary of the last build
// run.  The stored value is already JSON, so it passes through
// verbatim.
func NewStatusRouter(l hclog.Logger, store storage.Storage) chi.Router {
	log := l.Named("status")
	r := chi.NewRouter()
	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		blob, err := store.Get([]byte("build/last"))
		if err != nil {
			log.Warn("Error reading last summary", "error", err)
			http.Error(w, "no build summary available", http.StatusInternalServerError)
			return
		}
		if blob == nil {
			http.Error(w, "no build has run yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(blob)
	})
	return r
}
