package web

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/tmarchal/glowbooth/internal/logic/booth"
	"github.com/tmarchal/glowbooth/internal/logic/color"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Booth       *booth.Controller
	staticFS    fs.FS
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(broadcaster *StatusBroadcaster, controller *booth.Controller, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Booth:       controller,
		staticFS:    staticFS,
	}
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

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// HandleState returns the current consolidated snapshot as JSON.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Booth.Snapshot())
}

// HandleEnable handles POST /enable.
func (h *Handlers) HandleEnable(w http.ResponseWriter, r *http.Request) {
	h.Booth.EnableCapture()
	writeOK(w)
}

// HandleDisable handles POST /disable.
func (h *Handlers) HandleDisable(w http.ResponseWriter, r *http.Request) {
	h.Booth.DisableCapture()
	writeOK(w)
}

// HandleCapture handles POST /capture.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	h.Booth.SubmitCapture()
	// Accepted: the outcome arrives as a toast on the status stream.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "submitted"})
}

// HandleRetry handles POST /retry.
func (h *Handlers) HandleRetry(w http.ResponseWriter, r *http.Request) {
	h.Booth.RetryAfterError()
	writeOK(w)
}

type colorRequest struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// HandleColor handles POST /color to select the light color.
func (h *Handlers) HandleColor(w http.ResponseWriter, r *http.Request) {
	var req colorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if bad(req.R) || bad(req.G) || bad(req.B) {
		http.Error(w, "channels must be between 0 and 1", http.StatusBadRequest)
		return
	}
	h.Booth.SelectColor(color.New(req.R, req.G, req.B))
	writeOK(w)
}

type valueRequest struct {
	Value float64 `json:"value"`
}

// HandleSaturation handles POST /saturation to override the active color's
// multiplier.
func (h *Handlers) HandleSaturation(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Value < 0 || req.Value > 2 {
		http.Error(w, "value must be between 0 and 2", http.StatusBadRequest)
		return
	}
	h.Booth.SetSaturation(req.Value)
	writeOK(w)
}

// HandleBrightness handles POST /brightness.
func (h *Handlers) HandleBrightness(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Value < booth.MinBrightness || req.Value > booth.MaxBrightness {
		http.Error(w, "value must be between 0.1 and 1.0", http.StatusBadRequest)
		return
	}
	h.Booth.SetBrightness(req.Value)
	writeOK(w)
}

func bad(v float64) bool { return v != v || v < 0 || v > 1 }

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

// HandleLiveStream handles GET /live/stream as multipart MJPEG. One viewer
// at a time; the preview channel drops frames for slow consumers.
func (h *Handlers) HandleLiveStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	frames := h.Booth.Frames()
	if frames == nil {
		http.Error(w, "no live session", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame))
			w.Write(frame)
			w.Write([]byte("\r\n"))
			flusher.Flush()
		}
	}
}
