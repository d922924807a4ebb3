package waste

import (
	"testing"
	"time"
)

func TestDateOrdering(t *testing.T) {
	t.Parallel()
	a := Date{Year: 2024, Month: time.January, Day: 31}
	b := Date{Year: 2024, Month: time.February, Day: 1}

	if !a.Before(b) || b.Before(a) {
		t.Fatalf("Before ordering wrong for %v / %v", a, b)
	}
	if a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(a) != 0 {
		t.Fatalf("Compare inconsistent")
	}
}

func TestDateAddDaysAndDaysUntil(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		from Date
		add  int
		want Date
	}{
		{name: "month rollover", from: Date{2024, time.January, 31}, add: 1, want: Date{2024, time.February, 1}},
		{name: "leap day", from: Date{2024, time.February, 28}, add: 1, want: Date{2024, time.February, 29}},
		{name: "year rollover", from: Date{2023, time.December, 31}, add: 1, want: Date{2024, time.January, 1}},
		{name: "backwards", from: Date{2024, time.March, 1}, add: -1, want: Date{2024, time.February, 29}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.AddDays(tt.add); got != tt.want {
				t.Fatalf("AddDays(%d) = %v, want %v", tt.add, got, tt.want)
			}
			if got := tt.from.DaysUntil(tt.want); got != tt.add {
				t.Fatalf("DaysUntil = %d, want %d", got, tt.add)
			}
		})
	}
}

func TestDateOfUsesLocation(t *testing.T) {
	t.Parallel()
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	// 23:30 UTC on Jan 1 is already Jan 2 in Berlin.
	instant := time.Date(2024, time.January, 1, 23, 30, 0, 0, time.UTC)
	if got := DateOf(instant.In(berlin)); got != (Date{2024, time.January, 2}) {
		t.Fatalf("DateOf in Berlin = %v, want 2024-01-02", got)
	}
}

func TestDateTextRoundTrip(t *testing.T) {
	t.Parallel()
	d := Date{2024, time.June, 5}
	b, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if string(b) != "2024-06-05" {
		t.Fatalf("MarshalText = %q", b)
	}

	var back Date
	if err := back.UnmarshalText(b); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if back != d {
		t.Fatalf("round trip = %v, want %v", back, d)
	}

	if err := back.UnmarshalText([]byte("05.06.2024")); err == nil {
		t.Fatal("expected error for non-ISO date")
	}
}
