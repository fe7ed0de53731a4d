package frequency

import (
	"encoding/json"
	"testing"
)

func TestCascadeSource(t *testing.T) {
	tests := []struct {
		slot Tier
		want Tier
		ok   bool
	}{
		{Daily, Weekly, true},
		{Weekly, Biweekly, true},
		{Biweekly, Monthly, true},
		{Monthly, Bimonthly, true},
		{Bimonthly, Semiannual, true},
		{Semiannual, Yearly, true},
		{Yearly, 0, false},
	}
	for _, tt := range tests {
		got, ok := CascadeSource(tt.slot)
		if ok != tt.ok || got != tt.want {
			t.Errorf("CascadeSource(%s) = %s, %v; want %s, %v", tt.slot, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCascadeSourceIsNextCoarser(t *testing.T) {
	for _, slot := range All() {
		src, ok := CascadeSource(slot)
		if !ok {
			continue
		}
		if src != slot+1 {
			t.Errorf("CascadeSource(%s) = %s, want the next tier up", slot, src)
		}
	}
}

func TestIsCompatible(t *testing.T) {
	if !IsCompatible(Weekly, Daily) {
		t.Error("weekly chore should fit a daily slot")
	}
	if IsCompatible(Monthly, Daily) {
		t.Error("monthly chore should not skip a tier into a daily slot")
	}
	if IsCompatible(Daily, Daily) {
		t.Error("daily chores are never cascade candidates")
	}
	for _, slot := range All() {
		if IsCompatible(Daily, slot) {
			t.Errorf("daily chore reported compatible with %s slot", slot)
		}
	}
}

func TestCanFill(t *testing.T) {
	if !CanFill(Daily, Daily) {
		t.Error("daily chore should fill its own slot")
	}
	if !CanFill(Yearly, Semiannual) {
		t.Error("yearly chore should cascade into semiannual slot")
	}
	if CanFill(Weekly, Monthly) {
		t.Error("finer chore should not fill a coarser slot")
	}
	if CanFill(0, Daily) {
		t.Error("invalid tier should never fill")
	}
}

func TestParse(t *testing.T) {
	got, err := Parse(" biweekly ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != Biweekly {
		t.Errorf("got %s, want BIWEEKLY", got)
	}

	if _, err := Parse("HOURLY"); err == nil {
		t.Error("expected error for unknown tier")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		Frequency Tier `json:"frequency"`
	}
	b, err := json.Marshal(wrapper{Frequency: Semiannual})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"frequency":"SEMIANNUAL"}` {
		t.Errorf("json = %s", b)
	}

	var w wrapper
	if err := json.Unmarshal([]byte(`{"frequency":"FORTNIGHTLY"}`), &w); err == nil {
		t.Error("expected unmarshal error for unknown tier")
	}
}

func TestScan(t *testing.T) {
	var tier Tier
	if err := tier.Scan("MONTHLY"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if tier != Monthly {
		t.Errorf("scanned %s, want MONTHLY", tier)
	}
	if err := tier.Scan(int64(3)); err == nil {
		t.Error("expected error scanning integer")
	}
}
