package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	Status  string   `json:"status"`
	Count   int      `json:"count"`
	Asset   *string  `json:"asset"`
	Logs    []string `json:"logs"`
	Nested  inner    `json:"nested"`
	Failing []string `json:"failing"`
}

type inner struct {
	Tier string `json:"tier"`
}

func sample() result {
	return result{
		Status:  "success",
		Count:   3,
		Logs:    []string{"one", "two"},
		Nested:  inner{Tier: "RARE"},
		Failing: []string{},
	}
}

func TestPrinter(t *testing.T) {
	tests := []struct {
		name     string
		mode     Mode
		expected string
	}{
		{
			name:     "quiet",
			mode:     ModeQuiet,
			expected: "3 assets processed\n",
		},
		{
			name: "standard",
			mode: ModeStandard,
			expected: "3 assets processed\n" +
				"  status: success\n" +
				"  count: 3\n" +
				"  asset: -\n" +
				"  logs[0]: one\n" +
				"  logs[1]: two\n" +
				"  nested.tier: RARE\n" +
				"  failing: []\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, New(&buf, tt.mode).Print("3 assets processed", sample()))
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestPrinter_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, ModeJSON).Print("ignored in json mode", sample()))

	var decoded result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, sample(), decoded)
	assert.NotContains(t, buf.String(), "ignored in json mode")
}

func TestDefaultMode(t *testing.T) {
	t.Setenv("ASSETFORGE_JSON", "")
	assert.Equal(t, ModeStandard, DefaultMode())

	t.Setenv("ASSETFORGE_JSON", "1")
	assert.Equal(t, ModeJSON, DefaultMode())
}
