package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/GrantImport/internal/core"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	// keepAliveInterval keeps idle streams open through proxies.
	keepAliveInterval = 30 * time.Second
)

// parseLimit reads the "limit" query parameter, clamped to maxListLimit.
func parseLimit(r *http.Request) int {
	val := r.URL.Query().Get("limit")
	if val == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 1 {
		return defaultListLimit
	}
	return min(n, maxListLimit)
}

// handleImportHistory lists recent import runs, newest first.
func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.History(r.Context(), parseLimit(r))
	if err != nil {
		respondError(w, r, fmt.Errorf("list imports: %w", err), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []core.ImportRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": records})
}

// handleNotifications lists the notification inbox, newest first.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.Notifications(r.Context(), parseLimit(r))
	if err != nil {
		respondError(w, r, fmt.Errorf("list notifications: %w", err), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []core.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": list})
}

// handleNotificationStream pushes notifications of future imports via
// Server-Sent Events until the client disconnects or the server shuts down.
func (s *Server) handleNotificationStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, fmt.Errorf("streaming not supported"), http.StatusInternalServerError)
		return
	}

	notifications, unsubscribe := s.service.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case n, ok := <-notifications:
			if !ok {
				fmt.Fprint(w, "event: close\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", n.ID, n.Level, data)
			flusher.Flush()

		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleStatus reports import slot usage.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"imports": s.service.LimiterStatus(),
		},
	})
}

// handleHealth is an unauthenticated liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
