// Package detect finds sensitive data (PII, financial identifiers, business
// registration numbers, secrets) in free text and reduces the raw candidate
// spans to a deterministic, non-overlapping final set.
//
// All offsets are byte offsets into the scanned UTF-8 string. Detectors, the
// overlap resolver, and the anonymizer all operate on the same string value,
// so spans stay valid across the whole pipeline.
package detect

// Category classifies the kind of sensitive data a span contains.
type Category string

// The fixed category enumeration. String forms are stable: they appear in
// policy files, redaction tags, and issued tokens.
const (
	FullName     Category = "FULL_NAME"
	Organization Category = "ORGANIZATION"
	Email        Category = "EMAIL"
	Phone        Category = "PHONE"
	Address      Category = "ADDRESS"
	IBAN         Category = "IBAN"
	RIB          Category = "RIB"
	BIC          Category = "BIC"
	CreditCard   Category = "CREDIT_CARD"
	SIREN        Category = "SIREN"
	SIRET        Category = "SIRET"
	VAT          Category = "VAT"
	APIKey       Category = "API_KEY"
	Token        Category = "TOKEN"
	Other        Category = "OTHER"
)

// priorities drive overlap resolution: a higher-priority span always wins
// against an overlapping lower-priority one, regardless of length. Secrets
// and checksum-validated financial identifiers outrank free-text categories
// so a credit-card digit run can never be swallowed by a longer base64-shaped
// OTHER superstring.
var priorities = map[Category]int{
	APIKey:       100,
	Token:        100,
	CreditCard:   90,
	IBAN:         90,
	RIB:          90,
	BIC:          80,
	VAT:          70,
	SIREN:        70,
	SIRET:        70,
	Email:        60,
	Phone:        60,
	Address:      50,
	Organization: 40,
	FullName:     30,
	Other:        10,
}

// Categories returns every known category in declaration order.
func Categories() []Category {
	return []Category{
		FullName, Organization, Email, Phone, Address,
		IBAN, RIB, BIC, CreditCard, SIREN, SIRET, VAT,
		APIKey, Token, Other,
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := priorities[c]
	return ok
}

// Priority returns the overlap-resolution priority for c (0 for unknown).
func (c Category) Priority() int {
	return priorities[c]
}

// Span is a typed, positioned substring: either a raw detector candidate or a
// member of the resolved final set. Start/End are half-open byte offsets.
type Span struct {
	Type  Category `json:"type"`
	Start int      `json:"start"`
	End   int      `json:"end"`
	Value string   `json:"value"`
}

// Len returns the span length in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

// wellFormed reports whether the span can be applied to a text of the given
// length. Malformed spans (inverted or out-of-bounds offsets, missing value,
// unknown category) are dropped at ingestion rather than propagated.
func (s Span) wellFormed(textLen int) bool {
	return s.Type.Valid() && s.Start >= 0 && s.Start < s.End && s.End <= textLen && s.Value != ""
}

// overlaps reports whether two spans share at least one byte.
func (s Span) overlaps(o Span) bool {
	return s.Start < o.End && s.End > o.Start
}
