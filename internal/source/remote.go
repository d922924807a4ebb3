package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"wastebot/internal/ics"
	"wastebot/internal/waste"
	"wastebot/pkg/logx"
)

// RemoteCalendars fetches ICS feeds over HTTP(S).
type RemoteCalendars struct {
	URLs     []string
	Zone     *time.Location
	Horizon  time.Duration
	Classify func(string) waste.Type
	Client   *http.Client
	Log      logx.Logger

	Now func() time.Time // defaults to time.Now
}

func (s *RemoteCalendars) Name() string { return "ical-remote" }

func (s *RemoteCalendars) Produce(ctx context.Context) ([]waste.Occurrence, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	var out []waste.Occurrence
	for _, url := range s.URLs {
		url = strings.TrimSpace(url)
		if url == "" || !hasHTTPScheme(url) {
			continue
		}
		occs, err := s.fetchOne(ctx, client, url, now)
		if err != nil {
			// One broken feed must not take down the rest.
			s.Log.Warn("ics feed failed", logx.String("url", url), logx.Err(err))
			continue
		}
		out = append(out, occs...)
	}
	return out, nil
}

func (s *RemoteCalendars) fetchOne(ctx context.Context, client *http.Client, url string, now time.Time) ([]waste.Occurrence, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return ics.Extract(resp.Body, s.Zone, now, s.Horizon, s.Classify)
}

func hasHTTPScheme(url string) bool {
	l := strings.ToLower(url)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
