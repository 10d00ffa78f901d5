package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/cjeanneret/MazeGo/internal/debug"
)

// MaxRunBodyBytes bounds the POST /run request body.
const MaxRunBodyBytes = 1 << 20

// RunCooldown is the minimum time between two run starts.
const RunCooldown = 5 * time.Second

// Overrides holds run parameters that can override config defaults.
type Overrides struct {
	MapNumber int `json:"map_number"`
	Cargo     int `json:"cargo"` // -1 = no label
}

// ValidateOverrides checks the run parameters submitted by the form.
func ValidateOverrides(o Overrides) error {
	if o.MapNumber < 0 || o.MapNumber > 99 {
		return fmt.Errorf("map_number must be between 0 and 99, got %d", o.MapNumber)
	}
	if o.Cargo < -1 || o.Cargo > 3 {
		return fmt.Errorf("cargo must be between -1 and 3, got %d", o.Cargo)
	}
	return nil
}

// RunFunc runs one exploration with the given overrides until ctx is
// cancelled and returns the rendered map. It is called from the POST /run
// handler in a goroutine.
type RunFunc func(ctx context.Context, overrides Overrides) (string, error)

// FormConfig holds default values for the run form (from config).
type FormConfig struct {
	Team         string   `json:"team"`
	MapNumber    int      `json:"map_number"`
	Cargo        int      `json:"cargo"`
	CargoOptions []string `json:"cargo_options"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster  *StatusBroadcaster
	Run          RunFunc
	FormDefaults FormConfig
	staticFS     fs.FS

	mu        sync.Mutex
	base      context.Context // parent of every run context; nil = Background
	runs      sync.WaitGroup
	running   bool
	cancel    context.CancelFunc
	lastStart time.Time
	lastMap   string
}

// NewHandlers creates handlers with the given dependencies.
// If run is nil, POST /run will return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, run RunFunc, formDefaults FormConfig, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster:  broadcaster,
		Run:          run,
		FormDefaults: formDefaults,
		staticFS:     staticFS,
	}
}

// HandleConfig returns the form default values (from config) as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.FormDefaults)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleRun handles POST /run to start an exploration.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var overrides Overrides
	body := http.MaxBytesReader(w, r.Body, MaxRunBodyBytes)
	if err := json.NewDecoder(body).Decode(&overrides); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := ValidateOverrides(overrides); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.Run == nil {
		http.Error(w, "robot not configured", http.StatusServiceUnavailable)
		return
	}

	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		http.Error(w, "run already in progress", http.StatusConflict)
		return
	}
	if !h.lastStart.IsZero() && time.Since(h.lastStart) < RunCooldown {
		h.mu.Unlock()
		http.Error(w, "too many runs, wait a few seconds", http.StatusTooManyRequests)
		return
	}
	parent := h.base
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	h.runs.Add(1)
	h.running = true
	h.cancel = cancel
	h.lastStart = time.Now()
	h.mu.Unlock()

	// Run in goroutine; clear running when done
	go func() {
		defer h.runs.Done()
		defer func() {
			cancel()
			h.mu.Lock()
			h.running = false
			h.cancel = nil
			h.mu.Unlock()
		}()

		h.Broadcaster.Broadcast("info", fmt.Sprintf("Run started (map %d)", overrides.MapNumber))
		rendered, err := h.Run(ctx, overrides)
		if rendered != "" {
			h.SetLastMap(rendered)
		}
		if err != nil {
			h.Broadcaster.Broadcast("error", "Run failed: "+err.Error())
			debug.Error(fmt.Errorf("web run: %w", err))
			return
		}
		h.Broadcaster.Broadcast("info", "Run complete")
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}

// HandleStop handles POST /stop: it cancels the active run, which then
// closes its move log and builds the map.
func (h *Handlers) HandleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.Lock()
	cancel := h.cancel
	running := h.running
	h.mu.Unlock()

	if !running || cancel == nil {
		http.Error(w, "no run in progress", http.StatusConflict)
		return
	}
	cancel()
	h.Broadcaster.Broadcast("info", "Stop requested")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "stopping"})
}

// bind makes ctx the parent of every run started from now on, so that
// cancelling it stops the active run.
func (h *Handlers) bind(ctx context.Context) {
	h.mu.Lock()
	h.base = ctx
	h.mu.Unlock()
}

// Wait blocks until the active run, if any, has returned.
func (h *Handlers) Wait() {
	h.runs.Wait()
}

// Running reports whether a run is in progress.
func (h *Handlers) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// SetLastMap stores the rendered map served by GET /map.
func (h *Handlers) SetLastMap(rendered string) {
	h.mu.Lock()
	h.lastMap = rendered
	h.mu.Unlock()
}

// HandleMap handles GET /map with the last rendered map.
func (h *Handlers) HandleMap(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	rendered := h.lastMap
	h.mu.Unlock()

	if rendered == "" {
		http.Error(w, "no map yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(rendered))
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
