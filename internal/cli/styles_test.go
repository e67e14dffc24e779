package cli

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatBRL(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"0", "R$ 0,00"},
		{"5.5", "R$ 5,50"},
		{"999.99", "R$ 999,99"},
		{"1000", "R$ 1.000,00"},
		{"1234567.891", "R$ 1.234.567,89"},
		{"-1500.25", "-R$ 1.500,25"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBRL(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestFormatMessages(t *testing.T) {
	assert.Contains(t, FormatSuccess("done"), "done")
	assert.Contains(t, FormatError("failed"), ErrorIcon)
	assert.Contains(t, FormatWarning("careful"), "careful")
	assert.Contains(t, FormatTitle("Report"), "Report")
	assert.Contains(t, FormatMoney(decimal.NewFromInt(10)), "R$ 10,00")
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(
		[]string{"Supplier", "Total"},
		[][]string{
			{"acme", "R$ 10,00"},
			{"a-much-longer-supplier", "R$ 1.000,00"},
			{"short"},
		},
	)

	lines := strings.Split(out, "\n")
	assert.GreaterOrEqual(t, len(lines), 4)
	assert.Contains(t, out, "Supplier")
	assert.Contains(t, out, "a-much-longer-supplier")
	assert.Contains(t, out, "R$ 1.000,00")
	assert.Contains(t, out, "short")
}

func TestRenderBox(t *testing.T) {
	out := RenderBox("Title", "content")
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "content")
}
