package service

import (
	"fmt"
	"strings"

	"github.com/soapify-health/soapify/internal/domain"
)

// promptTemplate is the fixed instruction block sent ahead of every
// transcript. The model is told to treat the current transcript as the only
// source of truth and prior visits as background, and to write exactly
// "Not mentioned" instead of inferring absent facts.
const promptTemplate = `You are a clinical medical scribe generating a SOAP note.

THIS SOAP NOTE IS ONLY FOR THE CURRENT VISIT.
PAST VISITS ARE PROVIDED FOR CONTEXT ONLY.

CRITICAL TEMPORAL RULES (NO EXCEPTIONS):
- Use CURRENT VISIT TRANSCRIPT as the ONLY source of truth.
- PREVIOUS MEDICAL HISTORY is for background understanding ONLY.
- DO NOT copy symptoms, vitals, plans, or findings from past visits.
- Past information may be referenced ONLY in ASSESSMENT if relevant
  (e.g., "known asthma", "previous exacerbation").
- NEVER repeat old vitals, complaints, or plans unless explicitly stated again.

ABSOLUTE RULES (NO EXCEPTIONS):
- Output plain text only.
- Do NOT use bullets, lists, markdown, or special formatting.
- Do NOT add reminders, explanations, disclaimers, or extra sections.
- Do NOT invent information.
- Do NOT state a diagnosis, vital sign, or medication absent from the transcript.
- If information is truly absent, write exactly: Not mentioned.
- Output must begin directly with "SUBJECTIVE:".

SUBJECTIVE RULES:
- Include ONLY symptoms, complaints, and history stated IN THIS VISIT.
- Do NOT include vitals or examination findings.
- If absent, write exactly: Not mentioned.

OBJECTIVE RULES (STRICT):
- Include ONLY vitals or findings measured IN THIS VISIT.
- Do NOT reuse vitals from past visits.
- If absent today, write exactly: Not mentioned.

ASSESSMENT RULES:
- Clinical impression for THIS VISIT.
- You MAY reference past diagnoses for continuity (e.g., known asthma).
- Do NOT restate old resolved problems.

PLAN RULES:
- Include ONLY plans stated or implied IN THIS VISIT.
- If absent, write exactly: Not mentioned.

FORMAT RULES (STRICT):
- Output ONLY these four sections in this exact order:
  SUBJECTIVE:
  OBJECTIVE:
  ASSESSMENT:
  PLAN:`

const noHistoryPlaceholder = "No previous medical history available."

// PromptAssembler builds the generation prompt from a transcript and the
// retrieved prior notes. Pure and deterministic: identical inputs always
// yield byte-identical output, which keeps it unit-testable against the
// validator without any backend.
type PromptAssembler struct{}

func NewPromptAssembler() *PromptAssembler {
	return &PromptAssembler{}
}

// Build assembles the full prompt text. Retrieved history is rendered as
// labeled prior-visit blocks so the model cannot conflate visit boundaries
// with the current transcript.
func (a *PromptAssembler) Build(transcript string, history domain.RetrievalResult) string {
	var b strings.Builder

	b.WriteString(promptTemplate)
	b.WriteString("\n\n========================\n")
	b.WriteString("PREVIOUS MEDICAL HISTORY (REFERENCE ONLY):\n")
	b.WriteString(formatHistory(history))
	b.WriteString("\n========================\n\n")
	b.WriteString("CURRENT VISIT TRANSCRIPT (SOURCE OF TRUTH):\n")
	b.WriteString(strings.TrimSpace(transcript))
	b.WriteString("\n========================")

	return b.String()
}

func formatHistory(history domain.RetrievalResult) string {
	if len(history) == 0 {
		return noHistoryPlaceholder
	}

	blocks := make([]string, 0, len(history))
	for _, h := range history {
		block := fmt.Sprintf("[PRIOR VISIT #%d - %s]\n%s",
			h.SoapNumber,
			h.Date.UTC().Format("2006-01-02"),
			strings.TrimSpace(h.Content),
		)
		blocks = append(blocks, block)
	}

	return strings.Join(blocks, "\n---\n")
}
