// Package frequency defines the closed set of recurrence tiers a chore can
// have and the cascade relationship between them.
package frequency

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Tier is a chore's recurrence rate. The zero value is invalid.
// Declaration order is the total order from finest to coarsest.
type Tier uint8

const (
	Daily Tier = iota + 1
	Weekly
	Biweekly
	Monthly
	Bimonthly
	Semiannual
	Yearly
)

var names = [...]string{
	Daily:      "DAILY",
	Weekly:     "WEEKLY",
	Biweekly:   "BIWEEKLY",
	Monthly:    "MONTHLY",
	Bimonthly:  "BIMONTHLY",
	Semiannual: "SEMIANNUAL",
	Yearly:     "YEARLY",
}

// cascadeSource maps a slot tier to the pool that feeds it.
var cascadeSource = map[Tier]Tier{
	Daily:      Weekly,
	Weekly:     Biweekly,
	Biweekly:   Monthly,
	Monthly:    Bimonthly,
	Bimonthly:  Semiannual,
	Semiannual: Yearly,
}

// All returns every tier, finest first.
func All() []Tier {
	return []Tier{Daily, Weekly, Biweekly, Monthly, Bimonthly, Semiannual, Yearly}
}

// CascadeSources returns the tiers that can feed a finer slot, finest first.
func CascadeSources() []Tier {
	return []Tier{Weekly, Biweekly, Monthly, Bimonthly, Semiannual, Yearly}
}

// Names returns the canonical names of all tiers, finest first.
func Names() []string {
	out := make([]string, 0, len(names)-1)
	for _, t := range All() {
		out = append(out, t.String())
	}
	return out
}

// Valid reports whether t is one of the declared tiers.
func (t Tier) Valid() bool {
	return t >= Daily && t <= Yearly
}

func (t Tier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Tier(%d)", uint8(t))
	}
	return names[t]
}

// Parse returns the tier named s. Matching is case-insensitive.
func Parse(s string) (Tier, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, t := range All() {
		if names[t] == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown frequency %q: must be one of %s", s, strings.Join(Names(), ", "))
}

// CascadeSource returns the next-coarser tier whose chores may be pulled into
// a slot of tier t. Yearly has no source.
func CascadeSource(t Tier) (Tier, bool) {
	src, ok := cascadeSource[t]
	return src, ok
}

// IsCompatible reports whether a chore of choreFreq may be cascaded into a
// slot of slotType: only exactly one tier coarser than the slot qualifies.
func IsCompatible(choreFreq, slotType Tier) bool {
	src, ok := CascadeSource(slotType)
	return ok && src == choreFreq
}

// CanFill reports whether a chore of choreFreq may occupy a slot of slotType,
// either natively (same tier) or through the cascade.
func CanFill(choreFreq, slotType Tier) bool {
	if !choreFreq.Valid() || !slotType.Valid() {
		return false
	}
	return choreFreq == slotType || IsCompatible(choreFreq, slotType)
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("marshal invalid frequency %d", uint8(t))
	}
	return []byte(names[t]), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value stores the tier by name so the column stays readable.
func (t Tier) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("store invalid frequency %d", uint8(t))
	}
	return names[t], nil
}

func (t *Tier) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return t.UnmarshalText([]byte(v))
	case []byte:
		return t.UnmarshalText(v)
	default:
		return fmt.Errorf("scan frequency: unsupported type %T", src)
	}
}
