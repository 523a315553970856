package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/audiolibrelab/voicerec/internal/audio"
	"github.com/audiolibrelab/voicerec/internal/recorder"
	"github.com/audiolibrelab/voicerec/internal/service"
	"github.com/gorilla/websocket"
)

const defaultPushInterval = 250 * time.Millisecond

// Server represents the web server for controlling the recorder
type Server struct {
	service      service.Service
	port         string
	mux          *http.ServeMux
	commands     map[string]command
	upgrader     websocket.Upgrader
	pushInterval time.Duration
}

// command is a recorder control reachable over HTTP and the websocket.
type command struct {
	run     func() error
	message string
}

// StatusResponse represents the JSON response for status endpoint
type StatusResponse struct {
	service.Status
	Message string `json:"message"`
}

// New creates a new web server instance around svc
func New(svc service.Service, port string) *Server {
	s := &Server{
		service:      svc,
		port:         port,
		mux:          http.NewServeMux(),
		pushInterval: defaultPushInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.commands = map[string]command{
		"start":          {svc.Start, "Recording started"},
		"pause":          {svc.Pause, "Paused"},
		"resume":         {svc.Resume, "Resumed"},
		"toggle-pause":   {svc.TogglePause, "Pause toggled"},
		"stop-temporary": {svc.StopTemporary, "Recording stopped for review"},
		"stop":           {svc.Stop, "Recording finished"},
		"play":           {svc.TogglePlay, "Playback toggled"},
		"delete":         {svc.Delete, "Recording deleted"},
		"restart":        {svc.Restart, "Recording restarted"},
		"record-again":   {svc.RecordAgain, "Recording again"},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/artifact", s.handleArtifact)
	s.mux.HandleFunc("/recordings", s.handleRecordings)
	s.mux.HandleFunc("/config/select", s.handleSelectProfile)
	s.mux.HandleFunc("/ws", s.handleWS)
	for name := range s.commands {
		s.mux.HandleFunc("/"+name, s.handleCommand(name))
	}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the web server
func (s *Server) Start() error {
	localIP := getLocalIP()

	slog.Info("Starting VoiceRec Web Server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	return http.ListenAndServe(":"+s.port, s.mux)
}

// handleIndex serves the main web UI
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(indexHTML))
}

// handleCommand runs one recorder command (POST only)
func (s *Server) handleCommand(name string) http.HandlerFunc {
	cmd := s.commands[name]
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", "operation", name)
			return
		}

		slog.Debug("Command request received", "command", name)
		if err := cmd.run(); err != nil {
			s.sendErrorResponse(w, statusCodeFor(err),
				fmt.Sprintf("Failed to %s: %v", name, err),
				"operation", name)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": cmd.message,
			"status":  s.service.Status(0),
		})
	}
}

// statusCodeFor maps recorder and device failures onto HTTP status codes.
func statusCodeFor(err error) int {
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, audio.ErrDeviceUnavailable), errors.Is(err, audio.ErrUnsupportedPlatform):
		return http.StatusServiceUnavailable
	case errors.Is(err, recorder.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, recorder.ErrEmptyRecording):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleStatus returns the current recorder status. The optional width query
// parameter sizes the waveform in pixels.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", "operation", "status")
		return
	}

	width, err := parseWidth(r)
	if err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, err.Error(), "operation", "status")
		return
	}

	writeJSON(w, http.StatusOK, s.statusResponse(width))
}

func (s *Server) statusResponse(width int) StatusResponse {
	status := s.service.Status(width)
	return StatusResponse{Status: status, Message: generateStatusMessage(status)}
}

func parseWidth(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("width")
	if raw == "" {
		return 0, nil
	}
	width, err := strconv.Atoi(raw)
	if err != nil || width < 0 {
		return 0, fmt.Errorf("invalid width: %q", raw)
	}
	return width, nil
}

// generateStatusMessage creates a human-readable status line
func generateStatusMessage(status service.Status) string {
	switch status.State {
	case "recording":
		return fmt.Sprintf("Recording %s", status.ElapsedHuman)
	case "paused":
		return fmt.Sprintf("Paused at %s", status.ElapsedHuman)
	case "reviewing":
		if status.Temporary {
			return fmt.Sprintf("Stopped at %s, resume or finish", status.ElapsedHuman)
		}
		return fmt.Sprintf("Recorded %s", status.ElapsedHuman)
	case "playing":
		return fmt.Sprintf("Playing %s", status.ElapsedHuman)
	}
	if status.Error != "" {
		return status.Error
	}
	return "Ready to record"
}

// handleArtifact serves the bytes of the artifact under review, or of the
// object URL given in the url query parameter
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", "operation", "artifact")
		return
	}

	a, ok := s.service.Artifact()
	if u := r.URL.Query().Get("url"); u != "" {
		a, ok = s.service.ResolveArtifact(u)
	}
	if !ok {
		s.sendErrorResponse(w, http.StatusNotFound, "No recording available", "operation", "artifact")
		return
	}

	w.Header().Set("Content-Type", a.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(a.Size()))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", a.Name))
	w.Header().Set("Cache-Control", "no-cache")
	if r.Method == http.MethodHead {
		return
	}
	w.Write(a.Bytes)
}

// handleRecordings lists the recordings saved to the output directory
func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", "operation", "list_recordings")
		return
	}

	recordings, err := s.service.ListRecordings()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list recordings: %v", err),
			"operation", "list_recordings")
		return
	}
	if recordings == nil {
		recordings = []service.RecordingInfo{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"recordings": recordings,
	})
}

// handleSelectProfile switches the active configuration profile
func (s *Server) handleSelectProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", "operation", "select_profile")
		return
	}
	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form", "operation", "select_profile")
		return
	}

	profile := r.FormValue("profile")
	if profile == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "Profile name is required", "operation", "select_profile")
		return
	}

	if err := s.service.LoadProfile(profile); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest,
			fmt.Sprintf("Failed to load profile '%s': %v", profile, err),
			"profile", profile, "operation", "select_profile")
		return
	}

	slog.Info("Profile selected", "profile", profile)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Profile '%s' loaded", profile),
		"profile": profile,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

// sendErrorResponse sends a JSON error response and logs it
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	writeJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

// getLocalIP returns the local IP address used for outbound traffic
func getLocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
