package analyze_test

import (
	"fmt"
	"testing"

	"github.com/salasarservices/pulse/internal/analyze"
	"github.com/salasarservices/pulse/internal/model"
)

// Row sets sized like a Search Console page query: limits are applied by
// Reconcile, not by the fixture.
func benchRows(n, offset int) []model.Row {
	rows := make([]model.Row, n)
	for i := range rows {
		rows[i] = model.Row{Key: fmt.Sprintf("/page/%d", i+offset), Value: float64(n - i)}
	}
	return rows
}

func BenchmarkReconcile(b *testing.B) {
	cur, prev := benchRows(250, 0), benchRows(250, 3)
	b.ReportAllocs()
	for b.Loop() {
		analyze.Reconcile(cur, prev, 5)
	}
}

func BenchmarkFormatValue(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		analyze.FormatValue(1234567, "number")
		analyze.FormatValue(3.14159, "percent")
	}
}
