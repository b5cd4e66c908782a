package ocr

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// datePattern couples a regex with the group order its format implies.
type datePattern struct {
	re     *regexp.Regexp
	format string
}

// datePatterns is ordered most-specific first so a 2-digit-year pattern
// cannot swallow a 4-digit-year candidate.
var datePatterns = []datePattern{
	// 4-digit year formats.
	{regexp.MustCompile(`(?i)(\d{4})[./\-](\d{1,2})[./\-](\d{1,2})(?:\s+\d{1,2}:\d{2}(?::\d{2})?)?`), "ymd4"},
	{regexp.MustCompile(`(?i)(\d{1,2})[./\-'\s](\d{1,2})[./\-'\s](\d{4})(?:\s+\d{1,2}:\d{2}(?::\d{2})?)?`), "dmy4"},
	{regexp.MustCompile(`(?i)(\d{1,2})[./\-](\d{1,2})[./\-](\d{4})`), "mdy4"},

	// 2-digit year formats.
	{regexp.MustCompile(`(?i)['"]?(\d{2})[./\-\s](\d{1,2})[./\-\s](\d{1,2})(?:\s+\d{1,2}:\d{2})?`), "ymd2"},
	{regexp.MustCompile(`(?i)(\d{1,2})[./\-'\s](\d{1,2})[./\-'\s](\d{2})(?:\s+\d{1,2}:\d{2})?`), "dmy2"},

	// Compact formats without separators.
	{regexp.MustCompile(`\b(\d{4})(\d{2})(\d{2})\b`), "ymd4"},
	{regexp.MustCompile(`\b(\d{2})(\d{2})(\d{4})\b`), "dmy4"},
	{regexp.MustCompile(`\b(\d{2})(\d{2})(\d{2})\b`), "dmy2"},

	// Textual months, full and 3-letter, both orders.
	{regexp.MustCompile(`(?i)(\d{1,2})\s+([A-Za-z]+)[,\s]+['"]?(\d{2,4})`), "dmyName"},
	{regexp.MustCompile(`(?i)([A-Za-z]+)\s+(\d{1,2})[,\s]+['"]?(\d{2,4})`), "mdyName"},
	{regexp.MustCompile(`(?i)(\d{1,2})\s+([A-Za-z]{3})[,\s]+['"]?(\d{2,4})`), "dmyName"},
	{regexp.MustCompile(`(?i)([A-Za-z]{3})\s+(\d{1,2})[,\s]+['"]?(\d{2,4})`), "mdyName"},
}

// monthNames maps English month names plus Latin-transliterated Russian
// short forms to month numbers.
var monthNames = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4,
	"may": 5, "jun": 6, "jul": 7, "aug": 8,
	"sep": 9, "oct": 10, "nov": 11, "dec": 12,
	"january": 1, "february": 2, "march": 3, "april": 4,
	"june": 6, "july": 7, "august": 8,
	"september": 9, "october": 10, "november": 11, "december": 12,
	"yanv": 1, "fev": 2, "maya": 5, "iyun": 6, "iyul": 7,
	"avg": 8, "sen": 9, "okt": 10, "noya": 11, "dek": 12,
}

// ocrFixer corrects character misreadings common on stamped digits.
var ocrFixer = strings.NewReplacer(
	"O", "0", "o", "0",
	"l", "1", "I", "1", "|", "1",
	"S", "5", "s", "5",
	"B", "8",
	"Z", "2", "z", "2",
)

// ParseDate extracts the first recognizable date from a text fragment,
// retrying with OCR-error substitutions when the raw text yields nothing.
func ParseDate(text string) (time.Time, bool) {
	if d, ok := tryParseDate(text); ok {
		return d, true
	}
	return tryParseDate(ocrFixer.Replace(text))
}

func tryParseDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)

	for _, p := range datePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		var d, mo, y int
		var ok bool
		switch p.format {
		case "ymd4":
			y, mo, d, ok = atoi3(m[1], m[2], m[3])
		case "dmy4":
			d, mo, y, ok = atoi3(m[1], m[2], m[3])
		case "mdy4":
			mo, d, y, ok = atoi3(m[1], m[2], m[3])
		case "ymd2":
			y, mo, d, ok = atoi3(m[1], m[2], m[3])
			y = expandYear(y)
		case "dmy2":
			d, mo, y, ok = atoi3(m[1], m[2], m[3])
			y = expandYear(y)
		case "dmyName":
			mo = lookupMonth(m[2])
			if mo == 0 {
				continue
			}
			d, _ = strconv.Atoi(m[1])
			y, _ = strconv.Atoi(m[3])
			y = expandYear(y)
			ok = true
		case "mdyName":
			mo = lookupMonth(m[1])
			if mo == 0 {
				continue
			}
			d, _ = strconv.Atoi(m[2])
			y, _ = strconv.Atoi(m[3])
			y = expandYear(y)
			ok = true
		}
		if !ok {
			continue
		}

		if date, valid := validDate(y, mo, d); valid {
			return date, true
		}
	}

	return time.Time{}, false
}

func atoi3(a, b, c string) (int, int, int, bool) {
	x, err1 := strconv.Atoi(a)
	y, err2 := strconv.Atoi(b)
	z, err3 := strconv.Atoi(c)
	return x, y, z, err1 == nil && err2 == nil && err3 == nil
}

// expandYear applies the 2-digit-year convention: 00-29 → 2000s,
// 30-99 → 1900s.
func expandYear(y int) int {
	if y >= 100 {
		return y
	}
	if y < 30 {
		return 2000 + y
	}
	return 1900 + y
}

func lookupMonth(name string) int {
	name = strings.ToLower(name)
	if m, ok := monthNames[name]; ok {
		return m
	}
	if len(name) > 3 {
		return monthNames[name[:3]]
	}
	return 0
}

// validDate accepts only real calendar dates in the plausible photo range.
func validDate(y, m, d int) (time.Time, bool) {
	if d < 1 || d > 31 || m < 1 || m > 12 || y < 1900 || y > 2100 {
		return time.Time{}, false
	}
	date := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if date.Year() != y || int(date.Month()) != m || date.Day() != d {
		return time.Time{}, false
	}
	return date, true
}
