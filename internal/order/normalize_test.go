package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain number", raw: "1001", want: "1001"},
		{name: "hash prefix", raw: "#1001", want: "1001"},
		{name: "sequence suffix", raw: "1001.1", want: "1001"},
		{name: "hash and suffix", raw: "#1001.2", want: "1001"},
		{name: "multi digit suffix", raw: "#1001.12", want: "1001"},
		{name: "repeated suffix", raw: "1001.1.2", want: "1001"},
		{name: "repeated hash", raw: "##1001", want: "1001"},
		{name: "dot without digits kept", raw: "1001.", want: "1001."},
		{name: "inner dot kept", raw: "A.1B", want: "A.1B"},
		{name: "alphanumeric label", raw: "#SHOP-1001.3", want: "SHOP-1001"},
		{name: "case preserved", raw: "#AbC", want: "AbC"},
		{name: "whitespace preserved", raw: " 1001", want: " 1001"},
		{name: "only hash", raw: "#", want: ""},
		{name: "empty", raw: "", want: ""},
		{name: "hash inside kept", raw: "10#01", want: "10#01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalizeEquivalentLabels(t *testing.T) {
	for _, raw := range []string{"#1001", "1001", "1001.1", "#1001.2"} {
		assert.Equal(t, "1001", Normalize(raw), "label %q", raw)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, raw := range []string{"#1001", "1001.1.2", "##1001.3", "#.1", "x..1", "#", "a.1b.2", "1.2.3.4"} {
		once := Normalize(raw)
		assert.Equal(t, once, Normalize(once), "label %q", raw)
	}
}

func TestDisplayNumber(t *testing.T) {
	assert.Equal(t, "#1001", DisplayNumber("1001"))
	assert.Equal(t, "#1001", DisplayNumber("#1001"))
	assert.Equal(t, "#1001", DisplayNumber("#1001.1"))
	assert.Equal(t, "#1001", DisplayNumber(DisplayNumber("1001.4")))
}

func FuzzNormalizeIdempotent(f *testing.F) {
	for _, seed := range []string{"#1001", "1001.1", "##1.2.3", "", "#", ".5", "abc.12x.3"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		once := Normalize(raw)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize not idempotent for %q: %q then %q", raw, once, twice)
		}
	})
}
