package model

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in         string
		wantHour   int
		wantMinute int
		wantErr    bool
	}{
		{in: "08:00", wantHour: 8, wantMinute: 0},
		{in: "8:05", wantHour: 8, wantMinute: 5},
		{in: " 23:59 ", wantHour: 23, wantMinute: 59},
		{in: "00:00", wantHour: 0, wantMinute: 0},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "12:5", wantErr: true},
		{in: "1200", wantErr: true},
		{in: "", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "+8:00", wantErr: true},
		{in: "-0:00", wantErr: true},
		{in: "08:+5", wantErr: true},
		{in: "8 :00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, m, err := ParseClock(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff([2]int{tt.wantHour, tt.wantMinute}, [2]int{h, m}); diff != "" {
				t.Errorf("ParseClock mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPrevOccurrence(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "later the same day",
			now:  time.Date(2025, 1, 10, 9, 30, 0, 0, time.UTC),
			want: time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "before the slot uses yesterday",
			now:  time.Date(2025, 1, 10, 7, 59, 0, 0, time.UTC),
			want: time.Date(2025, 1, 9, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly at the slot",
			now:  time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC),
			want: time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "summer time",
			now:  time.Date(2025, 7, 1, 7, 30, 0, 0, time.UTC),
			want: time.Date(2025, 7, 1, 7, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PrevOccurrence(tt.now, 8, 0, london)
			if !got.Equal(tt.want) {
				t.Errorf("PrevOccurrence = %s, want %s", got.UTC(), tt.want)
			}
		})
	}
}

func TestPrevOccurrenceAcrossDSTChanges(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "slot inside spring-forward gap has no occurrence that day",
			now:  time.Date(2025, 3, 30, 1, 40, 0, 0, time.UTC),
			want: time.Date(2025, 3, 29, 1, 30, 0, 0, time.UTC),
		},
		{
			name: "day after spring-forward",
			now:  time.Date(2025, 3, 31, 0, 40, 0, 0, time.UTC),
			want: time.Date(2025, 3, 31, 0, 30, 0, 0, time.UTC),
		},
		{
			name: "before the first of a repeated slot",
			now:  time.Date(2025, 10, 26, 0, 10, 0, 0, time.UTC),
			want: time.Date(2025, 10, 25, 0, 30, 0, 0, time.UTC),
		},
		{
			name: "between the two instances of a repeated slot",
			now:  time.Date(2025, 10, 26, 0, 45, 0, 0, time.UTC),
			want: time.Date(2025, 10, 26, 0, 30, 0, 0, time.UTC),
		},
		{
			name: "after the second instance of a repeated slot",
			now:  time.Date(2025, 10, 26, 1, 45, 0, 0, time.UTC),
			want: time.Date(2025, 10, 26, 1, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PrevOccurrence(tt.now, 1, 30, london)
			if !got.Equal(tt.want) {
				t.Errorf("PrevOccurrence = %s, want %s", got.UTC(), tt.want)
			}
		})
	}
}

func TestSameWallClock(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	first := time.Date(2025, 10, 26, 0, 30, 0, 0, time.UTC)
	second := time.Date(2025, 10, 26, 1, 30, 0, 0, time.UTC)

	if !SameWallClock(first, second, london) {
		t.Error("both instances of 01:30 on the fall-back day should match in London")
	}
	if SameWallClock(first, second, time.UTC) {
		t.Error("instances an hour apart should not match in UTC")
	}
	if SameWallClock(first, first.AddDate(0, 0, 1), london) {
		t.Error("consecutive days should not match")
	}
}

func TestNormalizeCategories(t *testing.T) {
	got := NormalizeCategories([]string{" Technology", "science", "", "technology", "SPORTS"})
	want := []string{"technology", "science", "sports"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NormalizeCategories mismatch (-want +got):\n%s", diff)
	}
}

func TestCandidateValid(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want bool
	}{
		{name: "complete", c: Candidate{Title: "A", Link: "https://x"}, want: true},
		{name: "empty title", c: Candidate{Link: "https://x"}, want: false},
		{name: "blank title", c: Candidate{Title: "  ", Link: "https://x"}, want: false},
		{name: "no link", c: Candidate{Title: "A"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPreferencesLocation(t *testing.T) {
	p := DefaultPreferences(1)
	p.Timezone = "Mars/Olympus"
	if got := p.Location(); got != time.UTC {
		t.Errorf("Location() = %v, want UTC", got)
	}
}
