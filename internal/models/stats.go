package models

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// OutboundClicks reads stats.outbound_clicks. The value may be a JSON number
// or a numeric string; anything else counts as zero.
func OutboundClicks(stats []byte) float64 {
	if len(stats) == 0 {
		return 0
	}
	res := gjson.GetBytes(stats, "outbound_clicks")
	switch res.Type {
	case gjson.Number, gjson.String:
		v := res.Float()
		if v < 0 {
			return 0
		}
		return v
	default:
		return 0
	}
}

// PinStats is the analytics snapshot stored on a pin
type PinStats struct {
	OutboundClicks float64
	Impressions    float64
	Saves          float64
	DateRange      string
}

// Encode builds the stats blob
func (s PinStats) Encode() (JSONBlob, error) {
	out := []byte(`{}`)
	var err error
	for _, kv := range []struct {
		path  string
		value interface{}
	}{
		{"outbound_clicks", s.OutboundClicks},
		{"impressions", s.Impressions},
		{"saves", s.Saves},
		{"date_range", s.DateRange},
	} {
		out, err = sjson.SetBytes(out, kv.path, kv.value)
		if err != nil {
			return nil, err
		}
	}
	return JSONBlob(out), nil
}
