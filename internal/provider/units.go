package provider

import (
	"strconv"
	"strings"
	"time"
)

const (
	cmPerInch  = 2.54
	kgPerPound = 0.453592
	dayLayout  = "2006-01-02"
)

// parseDate accepts the two layouts the sources actually emit: a bare day
// or full RFC 3339 (with or without fractional seconds).
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{dayLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseBirthDate parses a source birth date. TheSportsDB pads missing
// dates as "0000-00-00", which is absent data rather than a bad record.
func parseBirthDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || s == "0000-00-00" {
		return nil
	}
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// parseScore parses a source score string. "0" is a real score (shutouts
// happen); only blank or non-numeric strings mean the game has not been
// scored.
func parseScore(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// heightToCM converts the feet-and-inches form APIs emit (6'2" or 6' 2")
// to centimeters. Anything else (metric strings, blanks) stays unset.
func heightToCM(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
	feet, inches, ok := strings.Cut(s, "'")
	if !ok {
		return nil
	}
	ft, err := strconv.Atoi(strings.TrimSpace(feet))
	if err != nil {
		return nil
	}
	in, err := strconv.Atoi(strings.TrimSpace(inches))
	if err != nil {
		return nil
	}
	cm := float64(ft*12+in) * cmPerInch
	return &cm
}

// inchesToCM converts a bare-inches height string ("74") to centimeters.
func inchesToCM(s string) *float64 {
	in, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || in <= 0 {
		return nil
	}
	cm := in * cmPerInch
	return &cm
}

// poundsToKG converts a weight string in pounds ("220" or "220 lbs") to
// kilograms.
func poundsToKG(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, "lbs", ""))
	lbs, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || lbs <= 0 {
		return nil
	}
	kg := lbs * kgPerPound
	return &kg
}

// splitName splits a display name on the first space so multi-word
// surnames stay together.
func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// intID renders a numeric source identifier, leaving zero (absent) empty.
func intID(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
