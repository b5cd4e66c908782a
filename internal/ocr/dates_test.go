package ocr

import (
	"testing"
	"time"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want time.Time
	}{
		{"iso", "2020-01-02", date(2020, 1, 2)},
		{"iso with time", "2020-01-02 14:30:05", date(2020, 1, 2)},
		{"iso dots", "1999.12.31", date(1999, 12, 31)},
		{"dmy four digit", "31.12.1999", date(1999, 12, 31)},
		{"dmy slashes", "31/12/1999", date(1999, 12, 31)},
		{"dmy quote separator", "31'12'1999", date(1999, 12, 31)},
		{"camera stamp", "'99.12.31", date(1999, 12, 31)},
		{"dmy two digit", "25.12.95", date(1995, 12, 25)},
		{"two digit camera style", "05.01.07", date(2005, 1, 7)},
		{"compact iso", "19991231", date(1999, 12, 31)},
		{"compact dmy", "31121999", date(1999, 12, 31)},
		{"compact dmy short", "311299", date(1999, 12, 31)},
		{"textual full month", "31 December 1999", date(1999, 12, 31)},
		{"textual mdy", "December 31, 1999", date(1999, 12, 31)},
		{"textual short", "31 Dec 99", date(1999, 12, 31)},
		{"textual mdy quote year", "Dec 31 '99", date(1999, 12, 31)},
		{"russian transliterated", "31 dek 1999", date(1999, 12, 31)},
		{"embedded in noise", "PHOTO 31.12.1999 PRINT", date(1999, 12, 31)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := ParseDate(c.in)
			if !ok {
				t.Fatalf("ParseDate(%q) found nothing", c.in)
			}
			if !got.Equal(c.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", c.in, got, c.want)
			}
		})
	}
}

func TestParseDate_OCRSubstitutions(t *testing.T) {
	// l→1, O→0 recover a readable date from misread digits.
	got, ok := ParseDate("l5.O6.l995")
	if !ok {
		t.Fatal("expected substituted parse to succeed")
	}
	if !got.Equal(date(1995, 6, 15)) {
		t.Errorf("got %v, want 1995-06-15", got)
	}
}

func TestParseDate_Rejections(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"no digits", "family picnic"},
		{"impossible fields", "99.99.99"},
		{"february thirtieth compact", "19990230"},
		{"year too early compact", "18501231"},
		{"year too late compact", "21501231"},
		{"empty", ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got, ok := ParseDate(c.in); ok {
				t.Errorf("ParseDate(%q) unexpectedly parsed %v", c.in, got)
			}
		})
	}
}

func TestParseDate_ISOTakesPrecedence(t *testing.T) {
	// A 4-digit-year ISO date must not be consumed by a 2-digit-year
	// pattern matching its prefix.
	got, ok := ParseDate("2020-01-02")
	if !ok {
		t.Fatal("expected parse")
	}
	if got.Year() != 2020 {
		t.Errorf("expected year 2020, got %d", got.Year())
	}
}

func TestExpandYear(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 2000},
		{29, 2029},
		{30, 1930},
		{99, 1999},
		{1985, 1985},
	}
	for _, c := range cases {
		if got := expandYear(c.in); got != c.want {
			t.Errorf("expandYear(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestValidDate_Leap(t *testing.T) {
	if _, ok := validDate(2000, 2, 29); !ok {
		t.Error("2000-02-29 is a valid leap day")
	}
	if _, ok := validDate(1999, 2, 29); ok {
		t.Error("1999-02-29 is not a real date")
	}
}
