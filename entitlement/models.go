package entitlement

import (
	"encoding/json"
	"fmt"

	"github.com/qrgate/qrgate/identity"
)

// Limits is the usage snapshot returned with every gated response.
// Max serializes as the string "unlimited" when the ceiling is the
// Unlimited sentinel.
type Limits struct {
	Used int64         `json:"used"`
	Max  int64         `json:"max"`
	Tier identity.Tier `json:"tier"`
}

// Remaining returns how many generations are left, or Unlimited.
func (l Limits) Remaining() int64 {
	if l.Max == Unlimited {
		return Unlimited
	}
	if l.Used >= l.Max {
		return 0
	}
	return l.Max - l.Used
}

// Exhausted reports whether the ceiling has been reached.
func (l Limits) Exhausted() bool {
	return l.Max != Unlimited && l.Used >= l.Max
}

// MarshalJSON renders Max as "unlimited" for the sentinel value.
func (l Limits) MarshalJSON() ([]byte, error) {
	type wire struct {
		Used int64         `json:"used"`
		Max  any           `json:"max"`
		Tier identity.Tier `json:"tier"`
	}
	w := wire{Used: l.Used, Tier: l.Tier}
	if l.Max == Unlimited {
		w.Max = "unlimited"
	} else {
		w.Max = l.Max
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts both the numeric and "unlimited" forms of Max.
func (l *Limits) UnmarshalJSON(data []byte) error {
	var w struct {
		Used int64           `json:"used"`
		Max  json.RawMessage `json:"max"`
		Tier identity.Tier   `json:"tier"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	l.Used = w.Used
	l.Tier = w.Tier

	if len(w.Max) == 0 || string(w.Max) == "null" {
		l.Max = 0
		return nil
	}
	if string(w.Max) == `"unlimited"` {
		l.Max = Unlimited
		return nil
	}
	if err := json.Unmarshal(w.Max, &l.Max); err != nil {
		return fmt.Errorf("entitlement: decode max: %w", err)
	}
	return nil
}
