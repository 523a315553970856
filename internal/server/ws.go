package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsRequest is a control message sent by a websocket client.
type wsRequest struct {
	Command string `json:"command"`
	Width   int    `json:"width,omitempty"`
}

type wsError struct {
	Success bool   `json:"success"`
	Command string `json:"command,omitempty"`
	Error   string `json:"error"`
}

// handleWS streams the status every push interval. Clients may send
// {"command": "..."} messages using the same names as the POST routes, and
// {"width": N} to resize the waveform.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	width, err := parseWidth(r)
	if err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, err.Error(), "operation", "ws")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	slog.Debug("WebSocket client connected", "remote", r.RemoteAddr)

	requests := make(chan wsRequest)
	closed := make(chan struct{})
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(closed)
		for {
			var req wsRequest
			if err := conn.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("WebSocket read failed", "error", err)
				}
				return
			}
			select {
			case requests <- req:
			case <-done:
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	push := func() bool {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(s.statusResponse(width)); err != nil {
			slog.Debug("WebSocket write failed", "error", err)
			return false
		}
		return true
	}

	if !push() {
		return
	}
	for {
		select {
		case <-closed:
			slog.Debug("WebSocket client disconnected", "remote", r.RemoteAddr)
			return
		case req := <-requests:
			if req.Width > 0 {
				width = req.Width
			}
			if req.Command != "" {
				if err := s.runCommand(req.Command); err != nil {
					conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteJSON(wsError{Command: req.Command, Error: err.Error()}); err != nil {
						return
					}
				}
			}
			if !push() {
				return
			}
		case <-ticker.C:
			if !push() {
				return
			}
		}
	}
}

func (s *Server) runCommand(name string) error {
	cmd, ok := s.commands[name]
	if !ok {
		return fmt.Errorf("unknown command: %s", name)
	}
	if err := cmd.run(); err != nil {
		slog.Error("WebSocket command failed", "command", name, "error", err)
		return fmt.Errorf("failed to %s: %w", name, err)
	}
	return nil
}
