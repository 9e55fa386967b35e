package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"time"

	"qmaze/server/cell_views"
	"qmaze/server/fastview"
	"qmaze/server/root_view"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

// shutdownWait bounds how long Serve waits for open requests after its context ends.
const shutdownWait = 2 * time.Second

// Server serves a single page of live training views. The page's ele-update stream is
// shared, so with several open pages each update reaches only one of them.
type Server struct {
	addr     string
	feed     *Feed
	rootView *root_view.RootView
}

// NewServer builds the views, fed by feed, and returns a server. The views run until ctx is done.
func NewServer(
	ctx context.Context,
	addr string,
	feed *Feed,
) (*Server, error) {
	rootView, err := root_view.NewRootView(ctx, feed.Updates())
	if err != nil {
		return nil, err
	}
	return &Server{
		addr:     addr,
		feed:     feed,
		rootView: rootView,
	}, nil
}

// Handler routes the index page and its websocket.
func (server *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket).Methods(http.MethodGet)
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
	return router
}

// Serve listens on the server's address until ctx is done, then shuts down gracefully.
func (server *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    server.addr,
		Handler: server.Handler(),
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Printf("serving on %s", server.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

// serveWebsocket publishes ele-updates to the client until it disconnects.
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

// serveIndex renders the page from the latest snapshot.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	var page bytes.Buffer
	grid := cell_views.Convert(server.feed.Last())
	if err := renderTemplate(&page, server.rootView, grid); err != nil {
		log.Println("index:", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = page.WriteTo(w)
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
	return t.Execute(w, data)
}
