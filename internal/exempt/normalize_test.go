package exempt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRepoURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"https form", "https://github.com/acme/billing.git", "git@github.com:acme/billing.git"},
		{"https without suffix", "https://github.com/acme/billing", "git@github.com:acme/billing.git"},
		{"http form", "http://github.com/acme/billing", "git@github.com:acme/billing.git"},
		{"ssh scp form", "git@github.com:acme/billing.git", "git@github.com:acme/billing.git"},
		{"ssh url form", "ssh://git@github.com/acme/billing.git", "git@github.com:acme/billing.git"},
		{"bare org/repo", "acme/billing", "git@github.com:acme/billing.git"},
		{"bare with host", "gitlab.example.com/acme/billing", "git@gitlab.example.com:acme/billing.git"},
		{"mixed case", "HTTPS://GitHub.com/Acme/Billing.GIT", "git@github.com:acme/billing.git"},
		{"surrounding space", "  acme/billing  ", "git@github.com:acme/billing.git"},
		{"trailing slash", "https://github.com/acme/billing/", "git@github.com:acme/billing.git"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRepoURL(tt.input))
		})
	}
}

func TestNormalizeRepoURLEquivalence(t *testing.T) {
	forms := []string{
		"https://github.com/acme/billing.git",
		"git@github.com:acme/billing.git",
		"acme/billing",
	}
	want := NormalizeRepoURL(forms[0])
	for _, f := range forms[1:] {
		assert.Equal(t, want, NormalizeRepoURL(f), "form %q", f)
	}
}

func TestSameRepo(t *testing.T) {
	assert.True(t, SameRepo("acme/billing", "https://github.com/acme/billing.git"))
	assert.False(t, SameRepo("acme/billing", "acme/payments"))
	assert.False(t, SameRepo("", ""), "empty never matches")
}
