// server serves a single page of live training progress. Episode results are pushed to the
// page over a websocket as element updates; /stats returns the running stats as json.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"qcar/reinforcement"
	"qcar/server/fastview"
	"qcar/server/views"

	"github.com/gorilla/mux"
)

const shutdownGracePeriod = 2 * time.Second

// Server serves the progress page to a single client at a time: the ele-update channel is
// shared, so concurrently open pages split the updates between them.
type Server struct {
	addr     string
	stats    *reinforcement.Stats
	rootView *views.RootView
	router   *mux.Router
}

// NewServer builds the views over @results and the routes. The views stop when @ctx is done.
func NewServer(
	ctx context.Context,
	addr string,
	stats *reinforcement.Stats,
	results <-chan reinforcement.EpisodeResult,
) (*Server, error) {
	rootView, err := views.NewRootView(ctx, results, stats.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("build views: %w", err)
	}

	server := &Server{
		addr:     addr,
		stats:    stats,
		rootView: rootView,
		router:   mux.NewRouter(),
	}
	server.router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	server.router.HandleFunc("/ws", server.serveWebsocket)
	server.router.HandleFunc("/stats", server.serveStats).Methods(http.MethodGet)
	return server, nil
}

// Handler returns the server's routes.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens until @ctx is done, then shuts down. Request contexts derive from @ctx,
// so open websockets end with it.
func (server *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:        server.addr,
		Handler:     server.router,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		errs <- httpServer.ListenAndServe()
	}()
	log.Printf("serving training progress on %s", server.addr)

	select {
	case err := <-errs:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// serveWebsocket publishes view updates to the client until it disconnects.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	cli, err := fastview.NewClient(server.rootView.Updates(), w, r)
	if err != nil {
		log.Println(err)
		return
	}

	if err := cli.Sync(); err != nil {
		log.Println("websocket:", err)
	}
}

func (server *Server) serveStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(server.stats.Snapshot()); err != nil {
		log.Println("stats:", err)
	}
}

// Serve the index.html main page, initialized with the current stats.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if err := renderTemplate(w, server.rootView, server.stats.Snapshot()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}

	err = t.Execute(w, data)
	return
}
