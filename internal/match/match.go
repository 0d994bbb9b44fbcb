// Package match holds the normalization and loose-parsing rules used when
// reconciling externally supplied rows against members and accounts. Upload
// parsing and template generation share these rules so a downloaded template
// always resolves on re-upload.
package match

import (
	"strconv"
	"strings"
	"time"
)

// Key normalizes a matching key: trimmed, lowercased, inner whitespace
// collapsed to single spaces. Member emails/names and account names are
// compared through this.
func Key(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			space = true
			continue
		}
		if space && len(out) > 0 {
			out = append(out, ' ')
		}
		space = false
		out = append(out, r)
	}
	return string(out)
}

// AmountMinor parses a decimal amount string into minor units at the given
// currency scale. Thousands separators and surrounding whitespace are
// tolerated. Returns false for empty, unparseable, or non-positive input;
// such rows are skipped, not errored.
func AmountMinor(s string, scale int) (int64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	// Reject negatives up front: "-0.50" would otherwise parse a zero
	// whole part and an unsigned fraction.
	if s[0] == '-' {
		return 0, false
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, false
	}
	// pad or truncate the fraction to the currency scale
	for len(frac) < scale {
		frac += "0"
	}
	frac = frac[:scale]
	var f int64
	if frac != "" {
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, false
		}
	}
	minor := w
	for i := 0; i < scale; i++ {
		minor *= 10
	}
	minor += f
	if minor <= 0 {
		return 0, false
	}
	return minor, true
}

// dateLayouts are tried in order when parsing a date cell.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"02/01/2006",
	"02.01.2006",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// spreadsheet serial dates count days from this epoch (the 1900 system with
// its historical off-by-two).
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Date parses a date cell loosely: an ISO or common date string, or a
// spreadsheet serial number. Unparseable input falls back to the batch's
// chosen collection date.
func Date(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 200000 {
		return serialEpoch.Add(time.Duration(serial * 24 * float64(time.Hour))).UTC()
	}
	return fallback
}
