package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/soapify-health/soapify/internal/domain"
)

// soapSections are the required headers in their required order.
var soapSections = []string{
	"SUBJECTIVE:",
	"OBJECTIVE:",
	"ASSESSMENT:",
	"PLAN:",
}

// vitalSignPattern matches free-standing clinical measurements: blood
// pressure (120/80), temperatures, pulse/respiration rates with units and
// saturation percentages. Bare counts like "2 days" deliberately do not
// match.
var vitalSignPattern = regexp.MustCompile(`(?i)\b\d{2,3}\s*/\s*\d{2,3}\b|\b\d{2,3}(\.\d+)?\s*(°\s*[cf]|bpm|mmhg|mg/dl|%)`)

// markdownPattern rejects list markers, code fences and markdown headers.
// The prompt forbids them; a model that emits them has ignored the template.
var markdownPattern = regexp.MustCompile(`(?m)^\s*-\s+|^\s*\*\s+|^\s*\d+\.\s+|^#+\s+` + "|```")

const (
	defaultMinContentLen = 40
	defaultMaxContentLen = 20000
)

// SoapValidator accepts only well-formed SOAP text. Checks run in a fixed
// order and the first failure short-circuits with its reason, so a rejected
// generation is debuggable rather than an opaque "invalid".
type SoapValidator struct {
	minLen int
	maxLen int
}

func NewSoapValidator() *SoapValidator {
	return &SoapValidator{
		minLen: defaultMinContentLen,
		maxLen: defaultMaxContentLen,
	}
}

// Validate parses raw model output and returns the exact text to persist as
// note content. Any rejection is a VALIDATION_ERROR carrying the reason of
// the first failed check.
func (v *SoapValidator) Validate(raw string) (string, error) {
	clean := strings.TrimSpace(raw)

	if clean == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "empty output")
	}

	if !strings.HasPrefix(clean, soapSections[0]) {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "output must start with SUBJECTIVE:")
	}

	positions := make([]int, len(soapSections))
	for i, section := range soapSections {
		idx := strings.Index(clean, section)
		if idx < 0 {
			return "", domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("missing section: %s", section))
		}
		positions[i] = idx
	}

	for i := 1; i < len(positions); i++ {
		if positions[i] < positions[i-1] {
			return "", domain.NewDomainError(domain.ErrCodeValidation, "sections out of order")
		}
	}

	bodies := sectionBodies(clean, positions)

	for i, section := range soapSections {
		body := bodies[i]

		// A section re-emitting another header means the model echoed the
		// template instead of filling it in.
		for _, other := range soapSections {
			if strings.Contains(body, other) {
				return "", domain.NewDomainError(domain.ErrCodeValidation,
					fmt.Sprintf("section %s contains header %s", section, other))
			}
		}

		if strings.TrimSpace(body) == "" {
			return "", domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("empty content under %s", section))
		}

		if section != "OBJECTIVE:" && vitalSignPattern.MatchString(body) {
			return "", domain.NewDomainError(domain.ErrCodeValidation,
				fmt.Sprintf("vital sign value outside OBJECTIVE (found in %s)", section))
		}
	}

	if markdownPattern.MatchString(clean) {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "forbidden markdown formatting detected")
	}

	if len(clean) < v.minLen {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "output suspiciously short, likely truncated")
	}
	if len(clean) > v.maxLen {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "output exceeds length bound, likely runaway generation")
	}

	return clean, nil
}

// sectionBodies slices the text between consecutive headers. positions must
// be the ordered header offsets within clean.
func sectionBodies(clean string, positions []int) []string {
	bodies := make([]string, len(soapSections))
	for i := range soapSections {
		start := positions[i] + len(soapSections[i])
		end := len(clean)
		if i < len(soapSections)-1 {
			end = positions[i+1]
		}
		bodies[i] = clean[start:end]
	}
	return bodies
}
