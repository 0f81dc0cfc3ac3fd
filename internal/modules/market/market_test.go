package market

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SupportedCodesAnyCase(t *testing.T) {
	tests := []struct {
		input    string
		expected Market
	}{
		{"US", US}, {"us", US}, {"Us", US},
		{"HK", HK}, {"hk", HK},
		{"CN", CN}, {"cN", CN},
		{"SG", SG}, {"sg", SG},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, m)
			assert.Equal(t, strings.ToUpper(tt.input), m.Code())
		})
	}
}

func TestParse_UnknownCodes(t *testing.T) {
	for _, input := range []string{"", "UK", "USA", "H K", "hkex", "1", " HK", "sg ", "\tus\n"} {
		t.Run(input, func(t *testing.T) {
			m, err := Parse(input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnknownMarket)
			assert.False(t, m.Valid())

			var unknown *UnknownMarketError
			require.ErrorAs(t, err, &unknown)
			assert.Equal(t, input, unknown.Code)
			assert.Contains(t, err.Error(), input)
		})
	}
}

func TestAccessors(t *testing.T) {
	tests := []struct {
		market   Market
		code     string
		country  CountryCode
		timezone string
	}{
		{US, "US", "US", "America/New_York"},
		{HK, "HK", "HK", "Asia/Hong_Kong"},
		{CN, "CN", "CN", "Asia/Shanghai"},
		{SG, "SG", "SG", "Asia/Singapore"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.market.Code())
			assert.Equal(t, tt.country, tt.market.Country())
			assert.Equal(t, tt.timezone, tt.market.TimeZone())
			assert.Equal(t, tt.timezone, tt.market.Location().String())
			assert.NotEmpty(t, tt.market.Name())
			assert.Equal(t, tt.code, tt.market.String())
		})
	}
}

func TestAll(t *testing.T) {
	assert.Equal(t, []Market{US, HK, CN, SG}, All())
	for _, m := range All() {
		parsed, err := Parse(m.Code())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
}

func TestZeroValue(t *testing.T) {
	var m Market
	assert.False(t, m.Valid())
	assert.Empty(t, m.Code())
	assert.Equal(t, "UTC", m.Location().String())

	_, err := m.MarshalText()
	assert.Error(t, err)
}

func TestTextRoundTrip(t *testing.T) {
	for _, m := range All() {
		t.Run(m.Code(), func(t *testing.T) {
			text, err := m.MarshalText()
			require.NoError(t, err)
			assert.Equal(t, m.Code(), string(text))

			var decoded Market
			require.NoError(t, decoded.UnmarshalText(text))
			assert.Equal(t, m, decoded)
		})
	}
}

func TestJSON(t *testing.T) {
	type payload struct {
		Market Market `json:"market"`
	}

	data, err := json.Marshal(payload{Market: SG})
	require.NoError(t, err)
	assert.JSONEq(t, `{"market":"SG"}`, string(data))

	var decoded payload
	require.NoError(t, json.Unmarshal([]byte(`{"market":"cn"}`), &decoded))
	assert.Equal(t, CN, decoded.Market)

	err = json.Unmarshal([]byte(`{"market":"XX"}`), &decoded)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownMarket)
	assert.Contains(t, err.Error(), "XX")
}
