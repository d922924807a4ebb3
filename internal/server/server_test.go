package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"wastebot/internal/eventbus"
	"wastebot/internal/waste"
	"wastebot/pkg/logx"
)

func testView(t *testing.T) ViewFunc {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return func() ViewParams {
		return ViewParams{
			Location:     loc,
			ShowCount:    5,
			GroupSameDay: true,
			RemindAtHour: 20,
			LeadHours:    12,
			Types:        waste.DefaultTypeTable(),
		}
	}
}

func startServer(t *testing.T, cfg Config, bus eventbus.Bus, snapshot SnapshotFunc) *Server {
	t.Helper()
	if bus == nil {
		bus = eventbus.New()
	}
	srv := New(cfg, logx.Nop(), bus, snapshot, testView(t))
	srv.Start()
	if srv.Addr() == "" {
		t.Fatal("server did not bind")
	}
	t.Cleanup(func() { srv.Stop(context.Background()) })
	return srv
}

func get(t *testing.T, url string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, vs := range header {
		req.Header[k] = vs
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	srv := startServer(t, Config{Enabled: true, Addr: "127.0.0.1:0"}, nil, func() []waste.Event { return nil })

	resp := get(t, "http://"+srv.Addr()+"/healthz", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestEventsEndpoint(t *testing.T) {
	events := []waste.Event{
		{Day: waste.Date{Year: 2030, Month: time.June, Day: 12}, Types: []waste.Type{waste.TypeGeneral}},
		{Day: waste.Date{Year: 2030, Month: time.June, Day: 19}, Types: []waste.Type{waste.TypePaper, waste.TypeOrganic}},
	}
	srv := startServer(t, Config{Enabled: true, Addr: "127.0.0.1:0"}, nil, func() []waste.Event { return events })

	resp := get(t, "http://"+srv.Addr()+"/api/events", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Count  int           `json:"count"`
		Events []waste.Event `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 || len(body.Events) != 2 {
		t.Fatalf("count = %d, events = %d", body.Count, len(body.Events))
	}
}

func TestNextEndpoint(t *testing.T) {
	day := waste.DateOf(time.Now()).AddDays(3)
	events := []waste.Event{{Day: day, Types: []waste.Type{waste.TypeGeneral}}}
	srv := startServer(t, Config{Enabled: true, Addr: "127.0.0.1:0"}, nil, func() []waste.Event { return events })

	resp := get(t, "http://"+srv.Addr()+"/api/next?limit=1", nil)
	defer resp.Body.Close()
	var rows []struct {
		Labels []string `json:"labels"`
		State  struct {
			Class string `json:"class"`
		} `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Labels[0] != "Restmüll" {
		t.Fatalf("label = %q", rows[0].Labels[0])
	}

	bad := get(t, "http://"+srv.Addr()+"/api/next?limit=0", nil)
	defer bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", bad.StatusCode)
	}
}

func TestAuthToken(t *testing.T) {
	srv := startServer(t, Config{Enabled: true, Addr: "127.0.0.1:0", Token: "secret"}, nil, func() []waste.Event { return nil })

	denied := get(t, "http://"+srv.Addr()+"/api/events", nil)
	denied.Body.Close()
	if denied.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", denied.StatusCode)
	}

	allowed := get(t, "http://"+srv.Addr()+"/api/events", http.Header{"Authorization": {"Bearer secret"}})
	allowed.Body.Close()
	if allowed.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status = %d", allowed.StatusCode)
	}

	// Health endpoint stays open for probes.
	health := get(t, "http://"+srv.Addr()+"/healthz", nil)
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", health.StatusCode)
	}
}

func TestStreamDeliversSnapshotAndUpdates(t *testing.T) {
	bus := eventbus.New()
	events := []waste.Event{{Day: waste.Date{Year: 2030, Month: time.June, Day: 12}, Types: []waste.Type{waste.TypeGlass}}}
	srv := startServer(t, Config{Enabled: true, Addr: "127.0.0.1:0"}, bus, func() []waste.Event { return events })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+srv.Addr()+"/api/stream", http.NoBody)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	first := readSSEEvent(t, r)
	if first != eventbus.EventsUpdated {
		t.Fatalf("first event = %q", first)
	}

	// A published bus message shows up on the stream.
	go func() {
		time.Sleep(50 * time.Millisecond)
		bus.Publish(eventbus.Message{Type: eventbus.AlertRaised, Data: map[string]string{"x": "y"}})
	}()
	if ev := readSSEEvent(t, r); ev != eventbus.AlertRaised {
		t.Fatalf("second event = %q", ev)
	}
}

// readSSEEvent reads lines until a blank frame separator and returns the
// event name.
func readSSEEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var event string
	for {
		line, err := r.ReadString('\n')
		if err == io.EOF {
			t.Fatal("stream closed early")
		}
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if strings.HasPrefix(line, "event: ") {
			event = strings.TrimPrefix(line, "event: ")
		}
		if line == "" && event != "" {
			return event
		}
	}
}
