package analyze

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatValue formats a metric value for display. Format "percent" renders
// two decimals with a percent sign; anything else is a number with thousands
// separators, and two decimals only when v is fractional.
func FormatValue(v float64, format string) string {
	v = zeroNaN(v)
	if format == "percent" {
		return strconv.FormatFloat(v, 'f', 2, 64) + "%"
	}
	if v == math.Trunc(v) {
		return groupThousands(strconv.FormatFloat(v, 'f', 0, 64))
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	dot := strings.IndexByte(s, '.')
	return groupThousands(s[:dot]) + s[dot:]
}

// FormatPct formats a percent change with its sign and arrow: "↑ 25.0%",
// "↓ 3.2%", "0.0%". The arrow follows the displayed value, so a change that
// rounds to 0.0% has none.
func FormatPct(pct float64) string {
	pct = math.Round(zeroNaN(pct)*10) / 10
	if pct == 0 {
		pct = 0 // drop the sign of -0
	}
	arrow := Arrow(pct)
	if arrow == "" {
		return fmt.Sprintf("%.1f%%", pct)
	}
	return fmt.Sprintf("%s %.1f%%", arrow, math.Abs(pct))
}

func groupThousands(digits string) string {
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}
	var b strings.Builder
	b.WriteString(sign)
	b.WriteString(digits[:head])
	for i := head; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
