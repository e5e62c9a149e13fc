package history

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/WessleyAI/medrag/engine/domain"
)

// DefaultSummaryChars bounds generated summaries.
const DefaultSummaryChars = 200

var chronicPattern = regexp.MustCompile(`(?i)\b(` + strings.Join([]string{
	`chronic(ally)?`, `diabet(es|ic)`, `hypertension`, `high blood pressure`, `asthma(tic)?`,
	`copd`, `emphysema`, `arthritis`, `epilep(sy|tic)`, `hypothyroid(ism)?`, `hyperthyroid(ism)?`,
	`thyroid`, `heart failure`, `coronary artery disease`, `kidney disease`, `ckd`,
	`crohn'?s`, `colitis`, `multiple sclerosis`, `parkinson'?s`, `hiv`, `lupus`, `psoriasis`,
	`long[- ]term`, `lifelong`, `recurr(ing|ent)`, `ongoing`, `maintenance (dose|therapy)`,
	`metformin`, `insulin`, `levothyroxine`, `lisinopril`, `amlodipine`, `statin`,
}, "|") + `)\b`)

// IsChronic reports whether text mentions an ongoing or recurring condition
// or a long-term medication.
func IsChronic(text string) bool {
	return chronicPattern.MatchString(text)
}

var whitespace = regexp.MustCompile(`\s+`)

// Summarize builds the short structured summary stored with an entry: the
// entry type label followed by the leading sentences of the text, cut at a
// word boundary once maxChars is reached.
func Summarize(t domain.EntryType, text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultSummaryChars
	}
	body := strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	if utf8.RuneCountInString(body) > maxChars {
		runes := []rune(body)
		cut := string(runes[:maxChars])
		if i := strings.LastIndexAny(cut, ".!?"); i >= maxChars/2 {
			cut = cut[:i+1]
		} else if i := strings.LastIndexByte(cut, ' '); i > 0 {
			cut = cut[:i] + "..."
		} else {
			cut += "..."
		}
		body = cut
	}
	return t.Label() + ": " + body
}
