package semantic

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/WessleyAI/medrag/engine/domain"
)

// Kind is the type of a payload field.
type Kind int

const (
	KindString Kind = iota
	KindBool
)

func (k Kind) String() string {
	if k == KindBool {
		return "bool"
	}
	return "string"
}

// Field describes one payload key.
type Field struct {
	Kind     Kind
	Required bool
}

// Schema is the closed set of payload keys a collection accepts.
type Schema map[string]Field

// Payload keys.
const (
	KeyContent   = "content"
	KeyCondition = "condition"
	KeyCategory  = "category"
	KeyPatientID = "patient_id"
	KeyRawText   = "raw_text"
	KeySummary   = "summary"
	KeyEntryType = "entry_type"
	KeyIsChronic = "is_chronic"
	KeyDate      = "date"
)

// ReferenceSchema is the payload of the reference knowledge collection.
var ReferenceSchema = Schema{
	KeyContent:   {Kind: KindString, Required: true},
	KeyCondition: {Kind: KindString, Required: true},
	KeyCategory:  {Kind: KindString},
}

// HistorySchema is the payload of the patient history collection.
var HistorySchema = Schema{
	KeyPatientID: {Kind: KindString, Required: true},
	KeyRawText:   {Kind: KindString},
	KeySummary:   {Kind: KindString, Required: true},
	KeyEntryType: {Kind: KindString, Required: true},
	KeyIsChronic: {Kind: KindBool, Required: true},
	KeyDate:      {Kind: KindString, Required: true},
}

// DefaultSchemas maps the assistant's collections to their schemas.
func DefaultSchemas() map[string]Schema {
	return map[string]Schema{
		domain.ReferenceCollection: ReferenceSchema,
		domain.HistoryCollection:   HistorySchema,
	}
}

// Validate rejects unknown keys, missing required keys and wrong value types.
func (s Schema) Validate(p Payload) error {
	for k, v := range p {
		f, ok := s[k]
		if !ok {
			return fmt.Errorf("%w: %s: unknown key", domain.ErrInvalidPayload, k)
		}
		if !f.Kind.accepts(v) {
			return fmt.Errorf("%w: %s: want %s, got %T", domain.ErrInvalidPayload, k, f.Kind, v)
		}
	}
	for _, k := range s.keys() {
		if f := s[k]; f.Required {
			if _, ok := p[k]; !ok {
				return fmt.Errorf("%w: %s: missing required key", domain.ErrInvalidPayload, k)
			}
		}
	}
	return nil
}

// ValidateFilter rejects conditions on unknown keys or of the wrong type.
func (s Schema) ValidateFilter(f Filter) error {
	for _, m := range f {
		field, ok := s[m.Key]
		if !ok {
			return fmt.Errorf("%w: %s: unknown key", domain.ErrInvalidFilter, m.Key)
		}
		if !field.Kind.accepts(m.Value) {
			return fmt.Errorf("%w: %s: want %s, got %T", domain.ErrInvalidFilter, m.Key, field.Kind, m.Value)
		}
	}
	return nil
}

func (s Schema) keys() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (k Kind) accepts(v any) bool {
	switch v.(type) {
	case string:
		return k == KindString
	case bool:
		return k == KindBool
	}
	return false
}

// Validated enforces per-collection schemas in front of another Index.
// Collections without a registered schema pass through unchecked.
type Validated struct {
	Index
	schemas map[string]Schema
}

// WithSchemas wraps idx so every Upsert and Search is checked at the boundary.
func WithSchemas(idx Index, schemas map[string]Schema) *Validated {
	return &Validated{Index: idx, schemas: schemas}
}

// Upsert implements Index.
func (v *Validated) Upsert(ctx context.Context, collection string, records []Record) error {
	if s, ok := v.schemas[collection]; ok {
		for _, r := range records {
			if err := s.Validate(r.Payload); err != nil {
				return fmt.Errorf("semantic: upsert %s id=%s: %w", collection, r.ID, err)
			}
		}
	}
	return v.Index.Upsert(ctx, collection, records)
}

// Search implements Index.
func (v *Validated) Search(ctx context.Context, collection string, vector []float32, filter Filter, topK int) ([]Hit, error) {
	if s, ok := v.schemas[collection]; ok {
		if err := s.ValidateFilter(filter); err != nil {
			return nil, fmt.Errorf("semantic: search %s: %w", collection, err)
		}
	}
	return v.Index.Search(ctx, collection, vector, filter, topK)
}

// --- Typed payloads ---

// ReferencePayload builds the payload for a reference document.
func ReferencePayload(doc domain.ReferenceDocument) Payload {
	p := Payload{KeyContent: doc.Content, KeyCondition: doc.Condition}
	if doc.Category != "" {
		p[KeyCategory] = doc.Category
	}
	return p
}

// HistoryPayload builds the payload for a history entry.
func HistoryPayload(e domain.HistoryEntry) Payload {
	return Payload{
		KeyPatientID: e.PatientID,
		KeyRawText:   e.RawText,
		KeySummary:   e.StructuredSummary,
		KeyEntryType: string(e.EntryType),
		KeyIsChronic: e.IsChronic,
		KeyDate:      e.Date.UTC().Format(time.RFC3339),
	}
}

// String returns a string field or "".
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Bool returns a bool field or false.
func (p Payload) Bool(key string) bool {
	b, _ := p[key].(bool)
	return b
}

// Time parses an RFC3339 field; the zero time is returned when absent or malformed.
func (p Payload) Time(key string) time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(p.String(key)))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (p Payload) clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
