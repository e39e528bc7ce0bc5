package core

import (
	"fmt"
	"strings"
)

// DefaultMostlyEmptyRatio is the share of missing cells that gets a row rejected.
const DefaultMostlyEmptyRatio = 0.7

// Reject reasons.
const (
	ReasonAllEmpty = "All fields empty"
)

// ReasonSeparator joins multiple reject reasons.
const ReasonSeparator = "; "

// AdmissionPolicy decides whether a normalized row is usable.
type AdmissionPolicy struct {
	MostlyEmptyRatio float64
}

// DefaultAdmissionPolicy returns the standard policy.
func DefaultAdmissionPolicy() AdmissionPolicy {
	return AdmissionPolicy{MostlyEmptyRatio: DefaultMostlyEmptyRatio}
}

// Admit returns the reject reason for a row of normalized values, or ""
// when the row is admitted. Nil and "" both count as missing.
func (p AdmissionPolicy) Admit(values []any) string {
	ratio := p.MostlyEmptyRatio
	if ratio <= 0 {
		ratio = DefaultMostlyEmptyRatio
	}

	n := len(values)
	missing := 0
	for _, v := range values {
		if isEmptyValue(v) {
			missing++
		}
	}

	var reasons []string
	switch {
	case missing == n:
		reasons = append(reasons, ReasonAllEmpty)
	case float64(missing)/float64(n) >= ratio:
		reasons = append(reasons, fmt.Sprintf("Mostly empty (%d/%d fields null)", missing, n))
	}
	return strings.Join(reasons, ReasonSeparator)
}

// Admit applies the default policy to a row.
func Admit(values []any) string {
	return DefaultAdmissionPolicy().Admit(values)
}
