package rag

import (
	"fmt"
	"strings"
)

// SystemPrompt frames reference-knowledge answers.
const SystemPrompt = `You are a helpful medical assistant AI. Your role is to provide information about symptoms, conditions, and general health advice based on the medical knowledge provided to you.

Important guidelines:
1. Always base your answers on the provided context/knowledge.
2. Be empathetic and clear in your responses.
3. Always recommend consulting a healthcare professional for proper diagnosis and treatment.
4. Never provide definitive diagnoses - only suggest possibilities.
5. If you don't have enough information, say so clearly.
6. Mention when symptoms require urgent medical attention.

Remember: You are providing general health information, not medical advice. Always encourage users to seek professional medical care.`

// HistorySystemPrompt frames insights over a patient's own history.
const HistorySystemPrompt = `You are a careful clinical documentation assistant. You summarize a patient's recorded medical history so a clinician can review it quickly.

Important guidelines:
1. Use only the history entries provided. Do not invent conditions, dates or medications.
2. Point out patterns across entries, such as repeated symptoms or medications that changed over time.
3. Call out every entry marked chronic and explain how it may relate to the current symptoms.
4. Be cautious: describe possibilities, never a diagnosis.
5. Say clearly when the history is too thin to support a conclusion.
6. Mention when the combination of history and symptoms warrants urgent medical attention.

Remember: your summary supports a healthcare professional; it does not replace one.`

// Fixed answers for requests with nothing to ground on.
const (
	NoKnowledgeMessage = "I don't have enough medical information to answer your question. Please consult a healthcare professional."
	NoHistoryMessage   = "No prior medical history is on record for this patient, so no history-based insight can be given. Please consult a healthcare professional about the current symptoms."
)

func queryPrompt(block, query string) string {
	return fmt.Sprintf(`Based on the following medical knowledge, please help answer the user's question.

MEDICAL KNOWLEDGE:
%s

USER'S QUESTION: %s

Please provide a helpful, informative response based on the knowledge above. Remember to recommend consulting a healthcare professional.`, block, query)
}

func insightPrompt(block, symptoms string) string {
	if strings.TrimSpace(symptoms) == "" {
		symptoms = "none reported"
	}
	return fmt.Sprintf(`Below is the patient's relevant medical history, most relevant first. Entries marked chronic describe ongoing conditions or long-term medication.

PATIENT HISTORY:
%s

CURRENT SYMPTOMS: %s

Summarize the parts of this history that matter for the current symptoms, highlight chronic conditions and recurring patterns, and note anything that should be raised with a healthcare professional.`, block, symptoms)
}

// degradedText presents retrieved sections verbatim under a banner that
// cannot be mistaken for generated prose.
func degradedText(reason string, sections []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Degraded mode: the answer service is unavailable (%s). The most relevant retrieved information is shown verbatim below.]", reason)
	for _, s := range sections {
		b.WriteString("\n\n")
		b.WriteString(s)
	}
	b.WriteString("\n\nPlease consult a healthcare professional for advice about your situation.")
	return b.String()
}
