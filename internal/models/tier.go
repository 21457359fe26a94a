package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Tier is one of the five rarity levels
type Tier string

const (
	TierCommon    Tier = "COMMON"
	TierUncommon  Tier = "UNCOMMON"
	TierRare      Tier = "RARE"
	TierEpic      Tier = "EPIC"
	TierLegendary Tier = "LEGENDARY"
)

// Ladder lists the tiers in ascending order; the index is the rank
var Ladder = [...]Tier{TierCommon, TierUncommon, TierRare, TierEpic, TierLegendary}

// Rank returns the ladder position. Empty or unknown tiers rank as COMMON.
func (t Tier) Rank() int {
	for i, tier := range Ladder {
		if tier == t {
			return i
		}
	}
	return 0
}

// OrCommon returns COMMON for an empty or unknown tier
func (t Tier) OrCommon() Tier {
	return Ladder[t.Rank()]
}

// Valid reports whether t is on the ladder
func (t Tier) Valid() bool {
	for _, tier := range Ladder {
		if tier == t {
			return true
		}
	}
	return false
}

// ParseTier accepts a tier name in any case
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown rarity tier %q", s)
	}
	return t, nil
}

// Scan implements sql.Scanner; NULL scans as the empty tier
func (t *Tier) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = ""
	case string:
		*t = Tier(v)
	case []byte:
		*t = Tier(v)
	default:
		return fmt.Errorf("cannot scan %T into Tier", src)
	}
	return nil
}

// Value implements driver.Valuer
func (t Tier) Value() (driver.Value, error) {
	if t == "" {
		return nil, nil
	}
	return string(t), nil
}
