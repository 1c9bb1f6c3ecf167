package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/TeleGo/internal/debug"
	"github.com/cjeanneret/TeleGo/internal/logic/astro"
	"github.com/cjeanneret/TeleGo/internal/logic/units"
)

// MaxBodyBytes caps POST bodies.
const MaxBodyBytes = 1 << 20

// MaxJogSteps caps a single manual move.
const MaxJogSteps = 100000

// DefaultCooldown is the minimum delay between two accepted /goto requests.
const DefaultCooldown = 5 * time.Second

// GotoRequest selects a target either by catalog name or by coordinates.
// Track keeps the mount on the target until POST /stop.
type GotoRequest struct {
	Target string   `json:"target,omitempty"`
	RADeg  *float64 `json:"ra_deg,omitempty"`
	DecDeg *float64 `json:"dec_deg,omitempty"`
	Track  bool     `json:"track"`
}

// RunGotoFunc slews to (and optionally tracks) star. It is called from the
// POST /goto handler in a goroutine and must return when ctx is cancelled.
type RunGotoFunc func(ctx context.Context, star astro.Star, track bool) error

// JogRequest nudges one axis by a signed number of motor steps.
type JogRequest struct {
	Axis  string `json:"axis"`
	Steps int    `json:"steps"`
}

// JogFunc moves one axis by steps and returns when the move is done or ctx
// is cancelled.
type JogFunc func(ctx context.Context, axis string, steps int) error

// PositionFunc reports where the axes currently point.
type PositionFunc func() units.Position

// FormConfig holds values the UI needs to build its form.
type FormConfig struct {
	LatitudeDeg     float64  `json:"latitude_deg"`
	LongitudeDeg    float64  `json:"longitude_deg"`
	TrackIntervalMs int      `json:"track_interval_ms"`
	Stars           []string `json:"stars"`
}

// PositionReport is the GET /position response.
type PositionReport struct {
	Azimuth  units.Degrees `json:"azimuth"`
	Altitude units.Degrees `json:"altitude"`
	Running  bool          `json:"running"`
	Target   string        `json:"target,omitempty"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster  *StatusBroadcaster
	RunGoto      RunGotoFunc
	Jog          JogFunc
	Position     PositionFunc
	FormDefaults FormConfig
	Cooldown     time.Duration

	runningMu sync.Mutex
	running   bool
	target    string
	cancel    context.CancelFunc
	lastStart time.Time

	staticFS fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If runGoto is nil, POST /goto will return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, runGoto RunGotoFunc, position PositionFunc, formDefaults FormConfig, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster:  broadcaster,
		RunGoto:      runGoto,
		Position:     position,
		FormDefaults: formDefaults,
		Cooldown:     DefaultCooldown,
		staticFS:     staticFS,
	}
}

// ValidateRequest checks that exactly one way of naming the target is used
// and that coordinates are finite and in range.
func ValidateRequest(req GotoRequest) error {
	name := strings.TrimSpace(req.Target)
	hasCoords := req.RADeg != nil || req.DecDeg != nil
	switch {
	case name != "" && hasCoords:
		return errors.New("give either target or ra_deg/dec_deg, not both")
	case name == "" && !hasCoords:
		return errors.New("target or ra_deg/dec_deg is required")
	case name != "":
		if len(name) > 64 {
			return errors.New("target name too long")
		}
		return nil
	}
	if req.RADeg == nil || req.DecDeg == nil {
		return errors.New("ra_deg and dec_deg must be given together")
	}
	ra, dec := *req.RADeg, *req.DecDeg
	if math.IsNaN(ra) || math.IsInf(ra, 0) || ra < 0 || ra >= 360 {
		return fmt.Errorf("ra_deg must be in [0, 360), got %g", ra)
	}
	if math.IsNaN(dec) || math.IsInf(dec, 0) || dec < -90 || dec > 90 {
		return fmt.Errorf("dec_deg must be in [-90, 90], got %g", dec)
	}
	return nil
}

// ResolveTarget turns a validated request into a star.
func ResolveTarget(req GotoRequest) (astro.Star, error) {
	if name := strings.TrimSpace(req.Target); name != "" {
		return astro.LookupStar(name)
	}
	return astro.Coordinates(units.Degrees(*req.RADeg), units.Degrees(*req.DecDeg)), nil
}

// HandleConfig returns the form values (from config) as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.FormDefaults)
}

// HandlePosition returns the current pointing and whether a run is active.
func (h *Handlers) HandlePosition(w http.ResponseWriter, r *http.Request) {
	var rep PositionReport
	if h.Position != nil {
		pos := h.Position()
		rep.Azimuth, rep.Altitude = pos.Azimuth, pos.Altitude
	}
	h.runningMu.Lock()
	rep.Running, rep.Target = h.running, h.target
	h.runningMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rep)
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

// HandleGoto handles POST /goto to start a slew or a tracking run.
func (h *Handlers) HandleGoto(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	var req GotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := ValidateRequest(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	star, err := ResolveTarget(req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, astro.ErrUnknownStar) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	if h.RunGoto == nil {
		http.Error(w, "mount not configured", http.StatusServiceUnavailable)
		return
	}

	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		http.Error(w, "a slew is already in progress", http.StatusConflict)
		return
	}
	if !h.lastStart.IsZero() && time.Since(h.lastStart) < h.Cooldown {
		h.runningMu.Unlock()
		http.Error(w, "too many requests, retry later", http.StatusTooManyRequests)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.running = true
	h.target = star.Name
	h.cancel = cancel
	h.lastStart = time.Now()
	h.runningMu.Unlock()

	// Run in goroutine; clear running when done
	go func() {
		defer func() {
			cancel()
			h.runningMu.Lock()
			h.running = false
			h.target = ""
			h.cancel = nil
			h.runningMu.Unlock()
		}()

		h.Broadcaster.Broadcast("info", "Slewing to "+star.Name)
		err := h.RunGoto(ctx, star, req.Track)
		switch {
		case errors.Is(err, context.Canceled):
			h.Broadcaster.Broadcast("info", "Stopped")
		case err != nil:
			h.Broadcaster.Broadcast("error", "Goto failed: "+err.Error())
			debug.Error(fmt.Errorf("goto %s: %w", star.Name, err))
		default:
			h.Broadcaster.Broadcast("info", "On target: "+star.Name)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "started", "target": star.Name})
}

// HandleJog handles POST /jog. The move runs in the request, so the
// response reports its outcome. It is refused while a goto is running.
func (h *Handlers) HandleJog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	var req JogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Steps == 0 || req.Steps > MaxJogSteps || req.Steps < -MaxJogSteps {
		http.Error(w, fmt.Sprintf("steps must be non-zero and within ±%d", MaxJogSteps), http.StatusBadRequest)
		return
	}
	if h.Jog == nil {
		http.Error(w, "mount not configured", http.StatusServiceUnavailable)
		return
	}

	h.runningMu.Lock()
	running := h.running
	h.runningMu.Unlock()
	if running {
		http.Error(w, "a slew is already in progress", http.StatusConflict)
		return
	}

	if err := h.Jog(r.Context(), req.Axis, req.Steps); err != nil {
		debug.Error(fmt.Errorf("jog %s: %w", req.Axis, err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.Broadcaster.Broadcast("info", fmt.Sprintf("Jogged %s by %d steps", req.Axis, req.Steps))
	h.HandlePosition(w, r)
}

// HandleStop handles POST /stop: it cancels the active slew or tracking run.
func (h *Handlers) HandleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	status := "idle"
	if h.Stop() {
		status = "stopping"
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// Stop cancels the active run, if any, and reports whether there was one.
func (h *Handlers) Stop() bool {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()
	if h.cancel == nil {
		return false
	}
	h.cancel()
	return true
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
	debug.Verbose("Status client connected (%d total)", h.Broadcaster.Subscribers())

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
