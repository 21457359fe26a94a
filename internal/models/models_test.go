package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierRank(t *testing.T) {
	tests := []struct {
		tier Tier
		want int
	}{
		{TierCommon, 0},
		{TierUncommon, 1},
		{TierRare, 2},
		{TierEpic, 3},
		{TierLegendary, 4},
		{"", 0},
		{"MYTHIC", 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tier.Rank())
		})
	}

	assert.Equal(t, TierCommon, Tier("").OrCommon())
	assert.Equal(t, TierEpic, TierEpic.OrCommon())
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier(" rare ")
	require.NoError(t, err)
	assert.Equal(t, TierRare, tier)

	_, err = ParseTier("mythic")
	assert.Error(t, err)
}

func TestTierScan(t *testing.T) {
	var tier Tier
	require.NoError(t, tier.Scan(nil))
	assert.Equal(t, Tier(""), tier)

	require.NoError(t, tier.Scan([]byte("EPIC")))
	assert.Equal(t, TierEpic, tier)

	assert.Error(t, tier.Scan(42))
}

func TestOutboundClicks(t *testing.T) {
	tests := []struct {
		name  string
		stats string
		want  float64
	}{
		{"number", `{"outbound_clicks": 51}`, 51},
		{"numeric string", `{"outbound_clicks": "200"}`, 200},
		{"garbage string", `{"outbound_clicks": "lots"}`, 0},
		{"missing", `{"impressions": 9}`, 0},
		{"null", `{"outbound_clicks": null}`, 0},
		{"empty blob", ``, 0},
		{"negative", `{"outbound_clicks": -3}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutboundClicks([]byte(tt.stats)))
		})
	}
}

func TestPinStatsEncode(t *testing.T) {
	blob, err := PinStats{OutboundClicks: 12, Impressions: 340, Saves: 5, DateRange: "30d"}.Encode()
	require.NoError(t, err)

	assert.JSONEq(t, `{"outbound_clicks":12,"impressions":340,"saves":5,"date_range":"30d"}`, string(blob))
	assert.Equal(t, float64(12), OutboundClicks(blob))
}

func TestJSONBlob(t *testing.T) {
	var blob JSONBlob
	require.NoError(t, blob.Scan(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, string(blob))

	v, err := JSONBlob(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	pin := Pin{ID: "p1", LastStats: JSONBlob(`{"outbound_clicks":3}`)}
	out, err := json.Marshal(pin)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"last_stats":{"outbound_clicks":3}`)
}
