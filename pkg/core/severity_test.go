package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityString(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityFatality, "fatality"},
		{SeverityError, "error"},
		{SeverityWarning, "warning"},
		{SeverityInfo, "info"},
		{SeverityHint, "hint"},
		{Severity(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.severity.String())
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input string
		want  Severity
		ok    bool
	}{
		{"fatality", SeverityFatality, true},
		{"error", SeverityError, true},
		{"WARNING", SeverityWarning, true},
		{"Info", SeverityInfo, true},
		{"hint", SeverityHint, true},
		{"critical", SeverityWarning, false},
		{"", SeverityWarning, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseSeverity(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeverityAtLeast(t *testing.T) {
	assert.True(t, SeverityFatality.AtLeast(SeverityHint))
	assert.True(t, SeverityWarning.AtLeast(SeverityWarning))
	assert.False(t, SeverityHint.AtLeast(SeverityError))
}

func TestSeverityRoundTrip(t *testing.T) {
	for _, sev := range []Severity{SeverityFatality, SeverityError, SeverityWarning, SeverityInfo, SeverityHint} {
		text, err := sev.MarshalText()
		assert.NoError(t, err)

		var back Severity
		assert.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, sev, back)
	}
}
