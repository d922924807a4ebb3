package aggregate

import (
	"testing"
	"time"

	"wastebot/internal/waste"
)

func day(d int) waste.Date { return waste.Date{Year: 2024, Month: time.June, Day: d} }

func TestMergeGroupsAndSorts(t *testing.T) {
	t.Parallel()
	occs := []waste.Occurrence{
		{Day: day(12), Type: waste.TypePaper},
		{Day: day(10), Type: waste.TypeGeneral},
		{Day: day(10), Type: waste.TypeOrganic},
		{Day: day(10), Type: waste.TypeGeneral}, // duplicate type, same day
		{Day: day(8), Type: waste.TypeGlass},    // before today
		{Type: waste.TypeGlass},                 // zero day
		{Day: day(11)},                          // empty type
	}

	got := Merge(occs, day(9), 0)

	if len(got) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(got), got)
	}
	if got[0].Day != day(10) || got[1].Day != day(12) {
		t.Fatalf("days not ascending from today: %+v", got)
	}
	if len(got[0].Types) != 2 || !got[0].HasType(waste.TypeGeneral) || !got[0].HasType(waste.TypeOrganic) {
		t.Fatalf("type union wrong: %+v", got[0])
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	t.Parallel()
	occs := []waste.Occurrence{
		{Day: day(20), Type: waste.TypeGeneral},
		{Day: day(15), Type: waste.TypeOrganic},
		{Day: day(20), Type: waste.TypePlastic},
		{Day: day(15), Type: waste.TypeOrganic},
	}

	first := Merge(occs, day(1), 10)
	second := Merge(occs, day(1), 10)

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Day != second[i].Day {
			t.Fatalf("day[%d] differs: %v vs %v", i, first[i].Day, second[i].Day)
		}
		if len(first[i].Types) != len(second[i].Types) {
			t.Fatalf("types[%d] differ: %v vs %v", i, first[i].Types, second[i].Types)
		}
		for j := range first[i].Types {
			if first[i].Types[j] != second[i].Types[j] {
				t.Fatalf("types[%d][%d] differ", i, j)
			}
		}
	}
}

func TestMergeInvariants(t *testing.T) {
	t.Parallel()
	occs := []waste.Occurrence{
		{Day: day(3), Type: waste.TypeGeneral},
		{Day: day(1), Type: waste.TypePaper},
		{Day: day(2), Type: waste.TypeGlass},
		{Day: day(1), Type: waste.TypePaper},
		{Day: day(2), Type: waste.TypeOrganic},
	}

	got := Merge(occs, day(1), 0)
	for i, ev := range got {
		if len(ev.Types) == 0 {
			t.Fatalf("event %v has empty type set", ev.Day)
		}
		seen := map[waste.Type]bool{}
		for _, typ := range ev.Types {
			if seen[typ] {
				t.Fatalf("duplicate type %q on %v", typ, ev.Day)
			}
			seen[typ] = true
		}
		if i > 0 && !got[i-1].Day.Before(ev.Day) {
			t.Fatalf("days not strictly ascending: %+v", got)
		}
	}
}

func TestMergeCapsEvents(t *testing.T) {
	t.Parallel()
	var occs []waste.Occurrence
	for d := 1; d <= 25; d++ {
		occs = append(occs, waste.Occurrence{Day: day(d), Type: waste.TypeGeneral})
	}
	got := Merge(occs, day(1), 10)
	if len(got) != 10 {
		t.Fatalf("got %d events, want cap of 10", len(got))
	}
	if got[0].Day != day(1) || got[9].Day != day(10) {
		t.Fatalf("cap must keep the earliest days: %v..%v", got[0].Day, got[9].Day)
	}
}

func TestMergeEmptyInput(t *testing.T) {
	t.Parallel()
	got := Merge(nil, day(1), 5)
	if got == nil || len(got) != 0 {
		t.Fatalf("Merge(nil) = %v, want empty non-nil", got)
	}
}
