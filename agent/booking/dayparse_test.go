package booking

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"
)

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("LoadLocation(%q) error = %v", name, err)
	}
	return loc
}

func TestParseDay(t *testing.T) {
	t.Parallel()

	ny := mustLocation(t, "America/New_York")
	// Tuesday.
	today := time.Date(2025, 1, 14, 9, 30, 0, 0, ny)
	date := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, ny) }

	tests := []struct {
		in       string
		dayFirst bool
		want     time.Time
		adjusted bool
	}{
		{in: "today", want: date(2025, 1, 14)},
		{in: "Hoy", want: date(2025, 1, 14)},
		{in: "tomorrow", want: date(2025, 1, 15)},
		{in: "tommorow", want: date(2025, 1, 15)},
		{in: "for tomorrow!", want: date(2025, 1, 15)},
		{in: "mañana", want: date(2025, 1, 15)},
		{in: "day after tomorrow", want: date(2025, 1, 16)},
		{in: "pasado mañana", want: date(2025, 1, 16)},
		{in: "Tuesday", want: date(2025, 1, 14)},
		{in: "next tuesday", want: date(2025, 1, 21)},
		{in: "friday", want: date(2025, 1, 17)},
		{in: "this Fri", want: date(2025, 1, 17)},
		{in: "viernes", want: date(2025, 1, 17)},
		{in: "el próximo lunes", want: date(2025, 1, 20)},
		{in: "miércoles", want: date(2025, 1, 15)},
		{in: "2025-01-20", want: date(2025, 1, 20)},
		{in: "3/4", want: date(2025, 3, 4)},
		{in: "3/4", dayFirst: true, want: date(2025, 4, 3)},
		{in: "13/2", want: date(2025, 2, 13)},
		{in: "2-13-2025", want: date(2025, 2, 13)},
		{in: "March 3rd", want: date(2025, 3, 3)},
		{in: "on the 3rd of March", want: date(2025, 3, 3)},
		{in: "Friday, March 7", want: date(2025, 3, 7)},
		{in: "twenty-first of march", want: date(2025, 3, 21)},
		{in: "15 de marzo", want: date(2025, 3, 15)},
		{in: "primero de febrero", want: date(2025, 2, 1)},
		{in: "veintiuno de marzo", want: date(2025, 3, 21)},
		{in: "5 de mayo de 2026", want: date(2026, 5, 5)},
		{in: "January 10", want: date(2026, 1, 10), adjusted: true},
		{in: "2024-03-10", want: date(2025, 3, 10), adjusted: true},
		{in: "2024-02-29", want: date(2028, 2, 29), adjusted: true},
		{in: "1/10/2023", want: date(2026, 1, 10), adjusted: true},
	}

	for _, tt := range tests {
		got, adjusted, err := ParseDay(tt.in, today, tt.dayFirst)
		if err != nil {
			t.Fatalf("ParseDay(%q) error = %v", tt.in, err)
		}
		if !got.Equal(tt.want) {
			t.Fatalf("ParseDay(%q) = %s, want %s", tt.in, got.Format(time.DateOnly), tt.want.Format(time.DateOnly))
		}
		if adjusted != tt.adjusted {
			t.Fatalf("ParseDay(%q) adjusted = %v, want %v", tt.in, adjusted, tt.adjusted)
		}
	}
}

func TestParseDayRejectsNonsense(t *testing.T) {
	t.Parallel()

	today := time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"", "   ", "whenever", "2/30", "March 42", "the 15th"} {
		if _, _, err := ParseDay(in, today, false); !errors.Is(err, ErrDayUnparsed) {
			t.Fatalf("ParseDay(%q) error = %v, want ErrDayUnparsed", in, err)
		}
	}
}

func TestCoerceFutureNeverReturnsPast(t *testing.T) {
	t.Parallel()

	today := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	for d := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC); d.Before(today.AddDate(1, 0, 0)); d = d.AddDate(0, 0, 1) {
		got := CoerceFuture(d, today)
		if got.Before(today) {
			t.Fatalf("CoerceFuture(%s) = %s, before today", d.Format(time.DateOnly), got.Format(time.DateOnly))
		}
		changed := !got.Equal(d)
		if changed != d.Before(today) {
			t.Fatalf("CoerceFuture(%s) changed = %v, want %v", d.Format(time.DateOnly), changed, d.Before(today))
		}
		if got.Month() != d.Month() || got.Day() != d.Day() {
			t.Fatalf("CoerceFuture(%s) = %s, month/day changed", d.Format(time.DateOnly), got.Format(time.DateOnly))
		}
	}
}

func TestCoerceFuturePrefersCurrentYear(t *testing.T) {
	t.Parallel()

	today := time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC)
	got := CoerceFuture(time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC), today)
	if want := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("CoerceFuture() = %s, want %s", got.Format(time.DateOnly), want.Format(time.DateOnly))
	}
	got = CoerceFuture(time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), today)
	if want := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("CoerceFuture() = %s, want %s", got.Format(time.DateOnly), want.Format(time.DateOnly))
	}
}
