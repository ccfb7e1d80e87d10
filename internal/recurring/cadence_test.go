package recurring

import (
	"errors"
	"testing"
	"time"
)

func TestComputeNextExecutionOffsets(t *testing.T) {
	t.Parallel()
	from := time.Date(2025, 3, 10, 15, 42, 7, 0, time.UTC)
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		freq Frequency
		want time.Time
	}{
		{Weekly, day.AddDate(0, 0, 7)},
		{Biweekly, day.AddDate(0, 0, 14)},
		{Monthly, time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)},
		{Quarterly, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)},
		{Biannual, time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.freq), func(t *testing.T) {
			got := ComputeNextExecution(tt.freq, from)
			if !got.Equal(tt.want) {
				t.Fatalf("ComputeNextExecution(%s) = %v, want %v", tt.freq, got, tt.want)
			}
		})
	}
}

func TestComputeNextExecutionIsIdempotentWithinADay(t *testing.T) {
	t.Parallel()
	morning := time.Date(2025, 5, 2, 0, 0, 1, 0, time.UTC)
	evening := time.Date(2025, 5, 2, 23, 59, 59, 0, time.UTC)
	for _, f := range Frequencies {
		a := ComputeNextExecution(f, morning)
		b := ComputeNextExecution(f, morning)
		c := ComputeNextExecution(f, evening)
		if !a.Equal(b) || !a.Equal(c) {
			t.Fatalf("%s: expected same answer within one day, got %v / %v / %v", f, a, b, c)
		}
	}
}

func TestComputeNextExecutionClampsMonthEnd(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		freq Frequency
		from time.Time
		want time.Time
	}{
		{"jan31 monthly", Monthly, time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC), time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)},
		{"jan31 monthly leap", Monthly, time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"nov30 quarterly", Quarterly, time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)},
		{"aug31 biannual", Biannual, time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)},
		{"dec15 monthly", Monthly, time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeNextExecution(tt.freq, tt.from)
			if !got.Equal(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeNextExecutionUnknownFallsBackToMonthly(t *testing.T) {
	t.Parallel()
	from := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)
	got := ComputeNextExecution(Frequency("fortnightly"), from)
	want := ComputeNextExecution(Monthly, from)
	if !got.Equal(want) {
		t.Fatalf("fallback = %v, want monthly %v", got, want)
	}

	if _, err := NextExecution(Frequency("fortnightly"), from); !errors.Is(err, ErrUnknownFrequency) {
		t.Fatalf("strict variant should reject, got %v", err)
	}
}

func TestComputeNextExecutionAlwaysAdvances(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 30, 23, 59, 59, 999, time.UTC)
	for _, f := range Frequencies {
		if next := ComputeNextExecution(f, now); !next.After(now) {
			t.Fatalf("%s: next %v not after %v", f, next, now)
		}
	}
}

func TestParseFrequency(t *testing.T) {
	t.Parallel()
	f, err := ParseFrequency(" Quarterly ")
	if err != nil || f != Quarterly {
		t.Fatalf("ParseFrequency = %q, %v", f, err)
	}
	if _, err := ParseFrequency("daily"); !errors.Is(err, ErrUnknownFrequency) {
		t.Fatalf("expected ErrUnknownFrequency, got %v", err)
	}
}
