package model

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultColor is the color class used when none (or an unsafe one) is given.
const DefaultColor = "bg-primary"

var colorPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-\s]+$`)

// NormalizeColor trims c and returns it when it is a safe class token,
// otherwise DefaultColor.
func NormalizeColor(c string) string {
	c = strings.TrimSpace(c)
	if c == "" || !colorPattern.MatchString(c) {
		return DefaultColor
	}
	return c
}

// PositiveID returns a pointer to id when it is >= 1, else nil.
func PositiveID(id int64) *int64 {
	if id < 1 {
		return nil
	}
	return &id
}

// PositiveIDPtr is PositiveID for an optional id.
func PositiveIDPtr(id *int64) *int64 {
	if id == nil {
		return nil
	}
	return PositiveID(*id)
}

// ParsePositiveInt parses a form value into a positive integer, flooring
// fractions. Empty, non-numeric and values below 1 yield nil.
func ParsePositiveInt(s string) *int64 {
	f, ok := parseFinite(s)
	if !ok || f < 1 {
		return nil
	}
	n := int64(math.Floor(f))
	return &n
}

// ParseNonNegativeInt is ParsePositiveInt with zero allowed.
func ParseNonNegativeInt(s string) *int {
	f, ok := parseFinite(s)
	if !ok || f < 0 {
		return nil
	}
	n := int(math.Floor(f))
	return &n
}

// NonNegativeIntPtr drops negative values.
func NonNegativeIntPtr(v *int) *int {
	if v == nil || *v < 0 {
		return nil
	}
	n := *v
	return &n
}

func parseFinite(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
