package xsdr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTuner(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want Tuner
	}{
		{"Rafael Micro R820T", TunerR820T},
		{"Rafael Micro R828D", TunerR828D},
		{"Elonics E4000", TunerE4000},
		{"Fitipower FC0012", TunerFC0012},
		{"Fitipower FC0013", TunerFC0013},
		{"FCI FC2580", TunerFC2580},
		{"", TunerUnknown},
		{"mystery", TunerUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, ParseTuner(tt.name))
		})
	}
}

func TestTunerString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "R820T", TunerR820T.String())
	assert.Equal(t, "UNKNOWN", Tuner(42).String())
}

func TestHeaderCarrier(t *testing.T) {
	t.Parallel()

	h := NewHeaderCarrier(map[string][]string{
		"X-Forwarded-For": {"10.0.0.1"},
		"Origin":          {"http://localhost"},
	})

	assert.Equal(t, "10.0.0.1", h.Get("x-forwarded-for"))
	assert.Equal(t, "http://localhost", h.Get("Origin"))
	assert.ElementsMatch(t, []string{"x-forwarded-for", "origin"}, h.Keys())
}
