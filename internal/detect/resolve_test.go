package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveNonOverlapping(t *testing.T) {
	spans := []Span{
		{Type: Email, Start: 10, End: 20, Value: "a@b.co.jpx"},
		{Type: Phone, Start: 30, End: 42, Value: "+33612345678"},
	}
	got := Resolve(spans)
	require.Len(t, got, 2)
	assert.Equal(t, 10, got[0].Start)
	assert.Equal(t, 30, got[1].Start)
}

func TestResolvePriorityBeatsLength(t *testing.T) {
	// A short high-priority API key inside a longer low-priority OTHER
	// superstring: the key wins and the superstring is dropped entirely.
	spans := []Span{
		{Type: Other, Start: 0, End: 50, Value: "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"},
		{Type: APIKey, Start: 5, End: 40, Value: "sk-abcdefghijklmnopqrstuvwxyz123456"},
	}
	got := Resolve(spans)
	require.Len(t, got, 1)
	assert.Equal(t, APIKey, got[0].Type)
}

func TestResolveLengthBreaksPriorityTie(t *testing.T) {
	// IBAN and CREDIT_CARD share priority; the longer span wins.
	spans := []Span{
		{Type: CreditCard, Start: 0, End: 16, Value: "4111111111111111"},
		{Type: IBAN, Start: 0, End: 22, Value: "GB29NWBK60161331926819"},
	}
	got := Resolve(spans)
	require.Len(t, got, 1)
	assert.Equal(t, IBAN, got[0].Type)
}

func TestResolveIndexBreaksFullTie(t *testing.T) {
	spans := []Span{
		{Type: SIREN, Start: 0, End: 9, Value: "552100554"},
		{Type: SIRET, Start: 0, End: 9, Value: "552100554"},
	}
	got := Resolve(spans)
	require.Len(t, got, 1)
	assert.Equal(t, SIREN, got[0].Type, "first candidate wins a full tie")
}

func TestResolveDropsNoSubSpans(t *testing.T) {
	// The loser of an overlap is discarded whole; no partial span survives.
	spans := []Span{
		{Type: Email, Start: 0, End: 20, Value: "jane.doe@example.com"},
		{Type: FullName, Start: 15, End: 30, Value: "e.com Jane Rest"},
	}
	got := Resolve(spans)
	require.Len(t, got, 1)
	assert.Equal(t, Email, got[0].Type)
}

func TestResolveIdempotent(t *testing.T) {
	spans := []Span{
		{Type: Other, Start: 0, End: 40, Value: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		{Type: Token, Start: 10, End: 30, Value: "eyJx.eyJy.zzzzzzzzzz"},
		{Type: Email, Start: 50, End: 60, Value: "a@b.com---"},
	}
	once := Resolve(spans)
	twice := Resolve(once)
	assert.Equal(t, once, twice)
}

func TestResolveOutputSortedAndDisjoint(t *testing.T) {
	spans := []Span{
		{Type: Phone, Start: 40, End: 52, Value: "+33612345678"},
		{Type: Email, Start: 0, End: 12, Value: "a@example.io"},
		{Type: Other, Start: 8, End: 45, Value: "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"},
	}
	got := Resolve(spans)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].Start, got[i-1].End, "spans must be disjoint and sorted")
	}
}

func TestResolveSkipsMalformed(t *testing.T) {
	spans := []Span{
		{Type: Email, Start: 5, End: 5, Value: ""},
		{Type: Email, Start: -1, End: 4, Value: "x"},
	}
	assert.Empty(t, Resolve(spans))
}

func TestResolveEmpty(t *testing.T) {
	assert.Empty(t, Resolve(nil))
	assert.Empty(t, Resolve([]Span{}))
}
