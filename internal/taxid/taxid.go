// Package taxid validates Brazilian tax registration numbers (CNPJ and CPF).
package taxid

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the type of registration number.
type Kind string

// Registration kinds.
const (
	KindCNPJ Kind = "cnpj"
	KindCPF  Kind = "cpf"
)

// ErrInvalidTaxID is returned when a registration number fails validation.
var ErrInvalidTaxID = errors.New("invalid tax id")

var (
	cnpjFirstWeights  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjSecondWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// Normalize strips punctuation and whitespace, keeping only digits.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Validate checks the check digits of a CNPJ or CPF and reports its kind.
func Validate(raw string) (Kind, error) {
	digits := Normalize(raw)

	switch len(digits) {
	case 14:
		if !validCNPJ(digits) {
			return "", fmt.Errorf("%w: cnpj %q", ErrInvalidTaxID, raw)
		}
		return KindCNPJ, nil
	case 11:
		if !validCPF(digits) {
			return "", fmt.Errorf("%w: cpf %q", ErrInvalidTaxID, raw)
		}
		return KindCPF, nil
	default:
		return "", fmt.Errorf("%w: %q has %d digits", ErrInvalidTaxID, raw, len(digits))
	}
}

// Format renders a valid number with the conventional punctuation.
func Format(raw string) string {
	d := Normalize(raw)
	switch len(d) {
	case 14:
		return fmt.Sprintf("%s.%s.%s/%s-%s", d[0:2], d[2:5], d[5:8], d[8:12], d[12:14])
	case 11:
		return fmt.Sprintf("%s.%s.%s-%s", d[0:3], d[3:6], d[6:9], d[9:11])
	default:
		return raw
	}
}

func validCNPJ(d string) bool {
	if repeated(d) {
		return false
	}
	first := mod11Digit(d[:12], cnpjFirstWeights)
	second := mod11Digit(d[:12]+string(rune('0'+first)), cnpjSecondWeights)
	return int(d[12]-'0') == first && int(d[13]-'0') == second
}

func validCPF(d string) bool {
	if repeated(d) {
		return false
	}
	first := mod11Digit(d[:9], descending(10, 9))
	second := mod11Digit(d[:10], descending(11, 10))
	return int(d[9]-'0') == first && int(d[10]-'0') == second
}

func mod11Digit(digits string, weights []int) int {
	sum := 0
	for i := range digits {
		sum += int(digits[i]-'0') * weights[i]
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

func descending(from, n int) []int {
	w := make([]int, n)
	for i := range w {
		w[i] = from - i
	}
	return w
}

// repeated rejects sequences like 000.000.000-00 that pass the checksum.
func repeated(d string) bool {
	return strings.Count(d, d[:1]) == len(d)
}
