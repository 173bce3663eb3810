// Package units handles the elapsed-time tokens that appear in
// instrument export headers and report labels, where a timepoint is
// written as a number plus an hour or minute suffix ("24h", "30m").
// Hours are the canonical unit everywhere else in the system.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseElapsed converts an elapsed-time token into hours. Accepted forms
// are "<n>h", "<n>m", and a bare number (treated as hours). The numeric
// part may be fractional.
func ParseElapsed(token string) (float64, error) {
	s := strings.TrimSpace(strings.ToLower(token))
	if s == "" {
		return 0, fmt.Errorf("empty elapsed-time token")
	}

	unit := "h"
	switch s[len(s)-1] {
	case 'h', 'm':
		unit = string(s[len(s)-1])
		s = s[:len(s)-1]
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid elapsed-time token %q: %w", token, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative elapsed time %q", token)
	}
	if unit == "m" {
		v /= 60
	}
	return v, nil
}

// FormatHours renders an hour value the way sheet names and chart axes
// show it: integral hours without a decimal point, fractional hours with
// up to two decimals.
func FormatHours(hours float64) string {
	if hours == math.Trunc(hours) {
		return strconv.FormatFloat(hours, 'f', 0, 64) + "h"
	}
	return strconv.FormatFloat(hours, 'f', 2, 64) + "h"
}

// WellName renders a 0-indexed coordinate as the instrument's well label
// (row letter A-H plus 1-indexed column): (0,0) -> "A1", (7,11) -> "H12".
func WellName(row, col int) string {
	return fmt.Sprintf("%c%d", 'A'+rune(row), col+1)
}
