// Package assemble turns ranked retrieval hits into the context block handed
// to the language model.
package assemble

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/WessleyAI/medrag/engine/domain"
)

const separator = "\n\n"

// Assemble concatenates hits in Rank order, skipping near-duplicates, until
// the next section would push the block past maxChars. used lists exactly
// the hits that made it into block, in block order. maxChars <= 0 disables
// the bound.
//
// When even the first section does not fit, its content is cut to the
// remaining room so the block is never empty while hits exist.
func Assemble(hits []domain.RetrievalHit, maxChars int) (block string, used []domain.RetrievalHit) {
	ordered := make([]domain.RetrievalHit, len(hits))
	copy(ordered, hits)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Rank > ordered[j].Rank })

	var b strings.Builder
	seen := make(map[string]struct{}, len(ordered))
	for _, h := range ordered {
		key := normalize(h.Content)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		section := Section(h)
		extra := len(section)
		if b.Len() > 0 {
			extra += len(separator)
		}
		if maxChars > 0 && b.Len()+extra > maxChars {
			if b.Len() == 0 {
				if cut, ok := fitFirst(h, maxChars); ok {
					b.WriteString(cut)
					used = append(used, h)
				}
			}
			break
		}
		if b.Len() > 0 {
			b.WriteString(separator)
		}
		b.WriteString(section)
		seen[key] = struct{}{}
		used = append(used, h)
	}
	return b.String(), used
}

// Section renders one hit as "--- header ---\ncontent".
func Section(h domain.RetrievalHit) string {
	return "--- " + Header(h) + " ---\n" + strings.TrimSpace(h.Content)
}

// Header names the section for a hit. Reference hits share one header;
// history hits carry their type, date and chronic flag.
func Header(h domain.RetrievalHit) string {
	if h.Metadata.PatientID == "" && h.Metadata.EntryType == "" {
		return "Medical Information"
	}
	parts := []string{h.Metadata.EntryType.Label()}
	if !h.Metadata.Date.IsZero() {
		parts = append(parts, h.Metadata.Date.UTC().Format("2006-01-02"))
	}
	if h.Metadata.IsChronic {
		parts = append(parts, "chronic")
	}
	return fmt.Sprintf("History: %s", strings.Join(parts, ", "))
}

func fitFirst(h domain.RetrievalHit, maxChars int) (string, bool) {
	head := "--- " + Header(h) + " ---\n"
	room := maxChars - len(head)
	if room <= 0 {
		return "", false
	}
	content := strings.TrimSpace(h.Content)
	if len(content) > room {
		content = strings.ToValidUTF8(content[:room], "")
	}
	return head + content, true
}

// normalize lower-cases text, drops punctuation and collapses whitespace so
// near-identical snippets compare equal.
func normalize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}
