package webserver

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"openf1companion/pkg/caster"
	"openf1companion/pkg/resources"
	"openf1companion/pkg/tracker"
)

var addr = ":8080"

// SnapshotSource is one tracked driver's latest derived state.
type SnapshotSource interface {
	Snapshot() tracker.Snapshot
}

var snapshotCaster = caster.JSONChannelCaster[[]tracker.Snapshot]{}

// Manager owns the HTTP surface: the live map page and websocket, the
// static resources dir and the JSON race-state API.
type Manager struct {
	r       *mux.Router
	sources []SnapshotSource
}

func NewManager(sources []SnapshotSource) *Manager {
	m := &Manager{
		r:       mux.NewRouter(),
		sources: sources,
	}

	m.rootHandlers()
	return m
}

func (m *Manager) Router() *mux.Router {
	return m.r
}

func (m *Manager) rootHandlers() {
	fs := http.FileServer(http.Dir(resources.ResourcesDir))
	resStr := "/resources/"

	m.r.PathPrefix(resStr).Handler(http.StripPrefix(resStr, fs))
	m.r.HandleFunc("/api/race", m.raceHandler).Methods(http.MethodGet)
}

// raceHandler serves the latest snapshot for every tracked driver. Each
// snapshot is internally consistent; drivers may sit at slightly
// different cutoffs.
func (m *Manager) raceHandler(w http.ResponseWriter, r *http.Request) {
	snapshots := make([]tracker.Snapshot, 0, len(m.sources))
	for _, source := range m.sources {
		snapshots = append(snapshots, source.Snapshot())
	}

	body, err := snapshotCaster.To(snapshots)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

// Serve blocks until ctx is cancelled, then shuts the server down
// gracefully with a 10 second drain deadline.
func (m *Manager) Serve(ctx context.Context, address string) {
	if address == "" {
		address = addr
	}
	srv := &http.Server{
		Addr: address,
		// Good practice to set timeouts to avoid Slowloris attacks.
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      m.r,
	}

	go func() {
		log.Printf("webserver listening on %s\n", address)
		if err := srv.ListenAndServe(); err != nil {
			log.Println(err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	log.Println("webserver shutting down")
}
