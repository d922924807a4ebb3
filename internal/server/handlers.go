package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"wastebot/internal/due"
	"wastebot/internal/eventbus"
	"wastebot/internal/waste"
	"wastebot/pkg/logx"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type eventsResponse struct {
	Count  int           `json:"count"`
	Events []waste.Event `json:"events"`
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	events := s.snapshot()
	if events == nil {
		events = []waste.Event{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Count: len(events), Events: events})
}

type nextRow struct {
	Day    waste.Date   `json:"day"`
	Types  []waste.Type `json:"types"`
	Labels []string     `json:"labels"`
	State  due.State    `json:"state"`
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	vp := s.view()
	limit := vp.ShowCount
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			http.Error(w, "limit must be 1..100", http.StatusBadRequest)
			return
		}
		limit = n
	}

	now := time.Now().In(vp.Location)
	rows := due.NextPickups(s.snapshot(), now, vp.GroupSameDay, limit, vp.RemindAtHour, vp.LeadHours)

	out := make([]nextRow, 0, len(rows))
	for _, row := range rows {
		labels := make([]string, 0, len(row.Types))
		for _, typ := range row.Types {
			labels = append(labels, vp.Types.Label(typ))
		}
		out = append(out, nextRow{Day: row.Day, Types: row.Types, Labels: labels, State: row.State})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleStream pushes bus messages as server-sent events. The first frame
// is always the current snapshot so late subscribers start complete.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSE(w, eventbus.EventsUpdated, s.snapshot())
	flusher.Flush()

	ch, unsub := s.bus.Subscribe(16)
	defer unsub()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case m, ok := <-ch:
			if !ok {
				return
			}
			if err := writeSSE(w, m.Type, m.Data); err != nil {
				s.log.Debug("sse write failed", logx.Err(err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}
