package service

import (
	"strings"
	"testing"
	"time"

	"github.com/soapify-health/soapify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptAssembler_Build(t *testing.T) {
	assembler := NewPromptAssembler()

	t.Run("is deterministic", func(t *testing.T) {
		history := domain.RetrievalResult{
			{NoteID: "n1", SoapNumber: 1, Date: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), Content: "SUBJECTIVE: cough"},
		}

		first := assembler.Build("Patient: dry cough for a week", history)
		second := assembler.Build("Patient: dry cough for a week", history)

		assert.Equal(t, first, second)
	})

	t.Run("renders placeholder when no history", func(t *testing.T) {
		prompt := assembler.Build("Patient: headache", nil)

		assert.Contains(t, prompt, noHistoryPlaceholder)
		assert.NotContains(t, prompt, "[PRIOR VISIT")
	})

	t.Run("labels each prior visit block", func(t *testing.T) {
		history := domain.RetrievalResult{
			{NoteID: "n2", SoapNumber: 2, Date: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), Content: "SUBJECTIVE: wheezing"},
			{NoteID: "n1", SoapNumber: 1, Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), Content: "SUBJECTIVE: cough"},
		}

		prompt := assembler.Build("Patient: follow up", history)

		assert.Contains(t, prompt, "[PRIOR VISIT #2 - 2026-03-14]")
		assert.Contains(t, prompt, "[PRIOR VISIT #1 - 2026-01-05]")
		assert.Contains(t, prompt, "\n---\n")
	})

	t.Run("keeps history and transcript in separate delimited blocks", func(t *testing.T) {
		history := domain.RetrievalResult{
			{NoteID: "n1", SoapNumber: 1, Date: time.Now().UTC(), Content: "SUBJECTIVE: prior visit"},
		}

		prompt := assembler.Build("Patient: today's complaint", history)

		historyIdx := strings.Index(prompt, "PREVIOUS MEDICAL HISTORY (REFERENCE ONLY):")
		transcriptIdx := strings.Index(prompt, "CURRENT VISIT TRANSCRIPT (SOURCE OF TRUTH):")
		require.GreaterOrEqual(t, historyIdx, 0)
		require.GreaterOrEqual(t, transcriptIdx, 0)
		assert.Less(t, historyIdx, transcriptIdx)

		assert.Contains(t, prompt[transcriptIdx:], "today's complaint")
	})

	t.Run("starts with the instruction template", func(t *testing.T) {
		prompt := assembler.Build("Patient: anything", nil)
		assert.True(t, strings.HasPrefix(prompt, "You are a clinical medical scribe"))
	})
}
