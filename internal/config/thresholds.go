package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Threshold is a parsed threshold expression such as "p(95)<500".
type Threshold struct {
	// Source is the expression as written in the options
	Source string

	// Aggregation is the metric value being compared: avg, min, med, max,
	// count, rate, value or p(N)
	Aggregation string

	// Operator is one of <, <=, >, >=, ==, !=
	Operator string

	// Value is the right-hand side
	Value float64
}

var thresholdRe = regexp.MustCompile(`^\s*([a-z]+|p\(\d+(?:\.\d+)?\))\s*(<=|>=|===|==|!=|<|>)\s*(-?\d+(?:\.\d+)?)\s*$`)

var plainAggregations = map[string]bool{
	"avg": true, "min": true, "med": true, "max": true,
	"count": true, "rate": true, "value": true,
}

// ParseThreshold parses a threshold expression.
func ParseThreshold(expr string) (Threshold, error) {
	m := thresholdRe.FindStringSubmatch(expr)
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold expression %q", expr)
	}

	agg := m[1]
	if !strings.HasPrefix(agg, "p(") && !plainAggregations[agg] {
		return Threshold{}, fmt.Errorf("unknown aggregation %q in threshold %q", agg, expr)
	}

	value, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value in %q: %w", expr, err)
	}

	op := m[2]
	if op == "===" {
		op = "=="
	}

	return Threshold{Source: expr, Aggregation: agg, Operator: op, Value: value}, nil
}

// Passes reports whether actual satisfies the threshold.
func (t Threshold) Passes(actual float64) bool {
	switch t.Operator {
	case "<":
		return actual < t.Value
	case "<=":
		return actual <= t.Value
	case ">":
		return actual > t.Value
	case ">=":
		return actual >= t.Value
	case "==":
		return actual == t.Value
	case "!=":
		return actual != t.Value
	default:
		return false
	}
}

// IsTrendStat reports whether name is a valid summaryTrendStats entry.
func IsTrendStat(name string) bool {
	switch name {
	case "avg", "min", "med", "max", "count":
		return true
	}
	_, ok := PercentileOf(name)
	return ok
}

// PercentileOf extracts N from "p(N)".
func PercentileOf(name string) (float64, bool) {
	if !strings.HasPrefix(name, "p(") || !strings.HasSuffix(name, ")") {
		return 0, false
	}
	v, err := strconv.ParseFloat(name[2:len(name)-1], 64)
	if err != nil || v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}
