// Package exempt loads and evaluates exemptions: time-bounded suppressions
// of one rule for one repository. Exemptions follow the same remote, local,
// built-in resolution chain as archetype configuration.
package exempt

import (
	"fmt"
	"strings"
	"time"
)

// Exemption suppresses one rule for one repository until it expires.
type Exemption struct {
	// Repo is the repository identity in any accepted URL form; it is
	// normalized before comparison.
	Repo string `json:"repo" mapstructure:"repo"`
	Rule string `json:"rule" mapstructure:"rule"`
	// ExpirationDate bounds the exemption; it matches only while
	// now < ExpirationDate.
	ExpirationDate Date   `json:"expirationDate" mapstructure:"expirationDate"`
	Reason         string `json:"reason" mapstructure:"reason"`
}

// Valid reports whether the record has the fields required to ever match.
func (e Exemption) Valid() bool {
	return e.Repo != "" && e.Rule != "" && !e.ExpirationDate.IsZero()
}

// Expired reports whether the exemption has lapsed at the given instant.
func (e Exemption) Expired(now time.Time) bool {
	return !now.Before(e.ExpirationDate.Time)
}

// Date is a timestamp that unmarshals from either a bare "2006-01-02" date
// or a full RFC 3339 timestamp, the two forms exemption authors use.
type Date struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("invalid expiration date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}
