package service

import (
	"strings"
	"testing"

	"github.com/soapify-health/soapify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSoapNote = `SUBJECTIVE: Patient complains of dry cough and mild fever for two days. No chest pain reported.
OBJECTIVE: Temperature 38.2 °C, blood pressure 120/80, pulse 88 bpm.
ASSESSMENT: Likely viral upper respiratory infection. Known asthma, currently stable.
PLAN: Rest, fluids, paracetamol as needed. Return if symptoms worsen within three days.`

func TestSoapValidator_Validate(t *testing.T) {
	validator := NewSoapValidator()

	t.Run("accepts a well formed note", func(t *testing.T) {
		content, err := validator.Validate(validSoapNote)
		require.NoError(t, err)
		assert.Equal(t, validSoapNote, content)
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		content, err := validator.Validate("\n\n" + validSoapNote + "\n")
		require.NoError(t, err)
		assert.Equal(t, validSoapNote, content)
	})

	t.Run("accepts Not mentioned bodies", func(t *testing.T) {
		note := `SUBJECTIVE: Patient reports mild headache since this morning.
OBJECTIVE: Not mentioned.
ASSESSMENT: Tension type headache, no red flags.
PLAN: Not mentioned.`
		content, err := validator.Validate(note)
		require.NoError(t, err)
		assert.Equal(t, note, content)
	})

	t.Run("rejects empty output", func(t *testing.T) {
		_, err := validator.Validate("   \n ")
		assertValidationError(t, err, "empty output")
	})

	t.Run("rejects output not starting with SUBJECTIVE", func(t *testing.T) {
		_, err := validator.Validate("Here is your SOAP note:\n" + validSoapNote)
		assertValidationError(t, err, "must start with SUBJECTIVE:")
	})

	t.Run("rejects missing PLAN section", func(t *testing.T) {
		note := `SUBJECTIVE: Patient reports a sore throat.
OBJECTIVE: Not mentioned.
ASSESSMENT: Pharyngitis.`
		_, err := validator.Validate(note)
		assertValidationError(t, err, "missing section: PLAN:")
	})

	t.Run("rejects sections out of order", func(t *testing.T) {
		note := `SUBJECTIVE: Patient reports a sore throat today.
ASSESSMENT: Pharyngitis, likely viral.
OBJECTIVE: Not mentioned.
PLAN: Warm fluids and rest.`
		_, err := validator.Validate(note)
		require.Error(t, err)
	})

	t.Run("rejects empty section body", func(t *testing.T) {
		note := `SUBJECTIVE: Patient reports a sore throat today.
OBJECTIVE:
ASSESSMENT: Pharyngitis, likely viral.
PLAN: Warm fluids and rest.`
		_, err := validator.Validate(note)
		assertValidationError(t, err, "empty content under OBJECTIVE:")
	})

	t.Run("rejects vital signs outside OBJECTIVE", func(t *testing.T) {
		note := `SUBJECTIVE: Patient reports blood pressure 150/95 measured at home.
OBJECTIVE: Not mentioned.
ASSESSMENT: Possible hypertension.
PLAN: Schedule blood pressure monitoring.`
		_, err := validator.Validate(note)
		assertValidationError(t, err, "vital sign value outside OBJECTIVE")
	})

	t.Run("allows bare counts like 2 days outside OBJECTIVE", func(t *testing.T) {
		note := `SUBJECTIVE: Patient complains of cough for 2 days and fatigue.
OBJECTIVE: Temperature 37.9 °C.
ASSESSMENT: Viral infection.
PLAN: Rest and fluids for 3 days.`
		_, err := validator.Validate(note)
		assert.NoError(t, err)
	})

	t.Run("rejects markdown formatting", func(t *testing.T) {
		note := `SUBJECTIVE: Patient reports a sore throat today.
OBJECTIVE: Not mentioned.
ASSESSMENT: Pharyngitis, likely viral.
PLAN:
- warm fluids
- rest`
		_, err := validator.Validate(note)
		assertValidationError(t, err, "forbidden markdown")
	})

	t.Run("rejects runaway generation", func(t *testing.T) {
		note := validSoapNote + "\n" + strings.Repeat("More plan detail. ", 2000)
		_, err := validator.Validate(note)
		assertValidationError(t, err, "exceeds length bound")
	})

	t.Run("rejects echoed template headers inside a body", func(t *testing.T) {
		// The duplicate SUBJECTIVE: lands in the PLAN body, after all four
		// first occurrences, so it trips the echoed-header check.
		note := validSoapNote + "\nSUBJECTIVE: repeated by a confused model."
		_, err := validator.Validate(note)
		require.Error(t, err)
	})
}

func assertValidationError(t *testing.T, err error, fragment string) {
	t.Helper()
	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	assert.Contains(t, err.Error(), fragment)
}
