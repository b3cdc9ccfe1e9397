package summary

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatNumber renders v with the shortest digits that round-trip, no
// trailing zeros and exponent notation outside [1e-6, 1e21), e.g. 12.5,
// 3, 1e-7 and 1e+21.
func FormatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		return "0"
	}

	abs := math.Abs(v)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	// strconv writes "1e-07"; the exponent is printed without padding.
	s := strconv.FormatFloat(v, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mant + "e" + sign + digits
}

// toFixed mirrors Number#toFixed.
func toFixed(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// toFixedNoTrailingZeros rounds to prec decimals and drops trailing zeros.
func toFixedNoTrailingZeros(v float64, prec int) string {
	f, err := strconv.ParseFloat(toFixed(v, prec), 64)
	if err != nil {
		return toFixed(v, prec)
	}
	return FormatNumber(f)
}

// toFixedNoTrailingZerosTrunc truncates to prec decimals and drops trailing zeros.
func toFixedNoTrailingZerosTrunc(v float64, prec int) string {
	mult := math.Pow(10, float64(prec))
	return toFixedNoTrailingZeros(math.Trunc(mult*v)/mult, prec)
}

var byteUnits = []string{"B", "kB", "MB", "GB", "TB", "PB"}

// HumanizeBytes renders a byte count with decimal (SI) units: "980 B", "1.2 MB".
func HumanizeBytes(bytes float64) string {
	if bytes < 10 {
		return FormatNumber(bytes) + " B"
	}

	e := int(math.Floor(math.Log(bytes) / math.Log(1000)))
	if e >= len(byteUnits) {
		e = len(byteUnits) - 1
	}
	val := math.Floor(bytes/math.Pow(1000, float64(e))*10+0.5) / 10

	prec := 0
	if val < 10 {
		prec = 1
	}
	return toFixed(val, prec) + " " + byteUnits[e]
}

var timeUnits = map[string]struct {
	unit string
	coef float64
}{
	"s":  {unit: "s", coef: 0.001},
	"ms": {unit: "ms", coef: 1},
	"us": {unit: "µs", coef: 1000},
}

// HumanizeDuration renders a duration given in milliseconds. A non-empty
// timeUnit ("s", "ms", "us") forces a fixed unit with two decimals.
func HumanizeDuration(ms float64, timeUnit string) string {
	if u, ok := timeUnits[timeUnit]; ok {
		return toFixed(ms*u.coef, 2) + u.unit
	}
	return humanizeGenericDuration(ms)
}

func humanizeGenericDuration(ms float64) string {
	switch {
	case ms == 0:
		return "0s"
	case ms < 0.001:
		return fmt.Sprintf("%dns", int64(math.Trunc(ms*1e6)))
	case ms < 1:
		return toFixedNoTrailingZerosTrunc(ms*1000, 2) + "µs"
	case ms < 1000:
		return toFixedNoTrailingZerosTrunc(ms, 2) + "ms"
	}

	secPrec := 2
	if ms > 60000 {
		secPrec = 0
	}
	result := toFixedNoTrailingZerosTrunc(math.Mod(ms, 60000)/1000, secPrec) + "s"

	rem := int64(math.Trunc(ms / 60000))
	if rem < 1 {
		return result
	}
	result = strconv.FormatInt(rem%60, 10) + "m" + result

	rem /= 60
	if rem < 1 {
		return result
	}
	return strconv.FormatInt(rem, 10) + "h" + result
}

// HumanizeValue renders a metric value according to its type and contents.
func HumanizeValue(v float64, m Metric, timeUnit string) string {
	if m.Type == TypeRate {
		// Truncated, not rounded: 99.999% stays 99.99%.
		return toFixed(math.Trunc(v*100*100)/100, 2) + "%"
	}

	switch m.Contains {
	case ContainsData:
		return HumanizeBytes(v)
	case ContainsTime:
		return HumanizeDuration(v, timeUnit)
	default:
		return toFixedNoTrailingZeros(v, 6)
	}
}
