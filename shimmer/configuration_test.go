package shimmer

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/shimmer-console/core/schema"
)

func TestNormalizeConfiguration(t *testing.T) {
	wire := `{
		"shimName": "fitbit",
		"settings": [
			{"settingId": "a", "type": "integer", "required": false, "label": "A"},
			{"settingId": "b", "type": "integer", "required": false, "label": "B"},
			{"settingId": "c", "type": "float", "required": false, "label": "C"},
			{"settingId": "d", "type": "float", "required": false, "label": "D"},
			{"settingId": "e", "type": "integer", "required": false, "label": "E"},
			{"settingId": "f", "type": "string", "required": true, "label": "F"},
			{"settingId": "g", "type": "boolean", "required": false, "label": "G"},
			{"settingId": "h", "type": "integer", "required": false, "label": "H"}
		],
		"values": [
			{"settingId": "a", "value": "3.7"},
			{"settingId": "b", "value": 12.9},
			{"settingId": "c", "value": "2.5kg"},
			{"settingId": "d", "value": 7},
			{"settingId": "e", "value": "many"},
			{"settingId": "f", "value": "42"},
			{"settingId": "g", "value": true},
			{"settingId": "h", "value": "99999999999999999999"},
			{"value": "orphan"}
		]
	}`
	var c Configuration
	require.NoError(t, json.Unmarshal([]byte(wire), &c))
	assert.Len(t, c.Values, 8)

	n := normalizeConfiguration(context.Background(), c)
	assert.Equal(t, int64(3), n.Values["a"])
	assert.Equal(t, int64(12), n.Values["b"])
	assert.Equal(t, 2.5, n.Values["c"])
	assert.Equal(t, 7.0, n.Values["d"])
	assert.Equal(t, "many", n.Values["e"])
	assert.Equal(t, "42", n.Values["f"])
	assert.Equal(t, true, n.Values["g"])
	assert.Equal(t, 1e20, n.Values["h"])

	// the input is not modified
	assert.Equal(t, "3.7", c.Values["a"])
}

func TestParseInteger(t *testing.T) {
	testCases := []struct {
		in      interface{}
		want    interface{}
		wantErr bool
	}{
		{in: "3", want: int64(3)},
		{in: " -3.9", want: int64(-3)},
		{in: "12px", want: int64(12)},
		{in: 3.7, want: int64(3)},
		{in: -3.7, want: int64(-3)},
		{in: int64(8), want: int64(8)},
		{in: json.Number("-12.5"), want: int64(-12)},
		// beyond int64 the value stays numeric
		{in: 1e20, want: 1e20},
		{in: -1e20, want: -1e20},
		{in: 9223372036854775807.0, want: 9223372036854775808.0},
		{in: "99999999999999999999", want: 1e20},
		{in: "-99999999999999999999.5 steps", want: -1e20},
		{in: "9223372036854775807", want: int64(math.MaxInt64)},
		{in: "", wantErr: true},
		{in: "px12", wantErr: true},
		{in: true, wantErr: true},
	}
	for _, tc := range testCases {
		got, err := parseInteger(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "%v", tc.in)
			continue
		}
		assert.NoError(t, err, "%v", tc.in)
		assert.Equal(t, tc.want, got, "%v", tc.in)
	}
}

func TestParseFloat(t *testing.T) {
	f, err := parseFloat("1e3x")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, f)

	f, err = parseFloat(".5")
	require.NoError(t, err)
	assert.Equal(t, 0.5, f)

	_, err = parseFloat("abc")
	assert.Error(t, err)
}

func TestConfiguration_MarshalJSON(t *testing.T) {
	c := Configuration{
		ShimName: "withings",
		Settings: []ConfigurationSetting{
			{SettingID: "z", Type: SettingTypeString, Label: "Z"},
			{SettingID: "a", Type: SettingTypeInteger, Label: "A"},
		},
		Values: map[string]interface{}{"a": int64(1), "z": "last", "extra": "x"},
	}
	b, err := json.Marshal(c)
	require.NoError(t, err)

	var wire struct {
		ShimName string               `json:"shimName"`
		Values   []ConfigurationValue `json:"values"`
	}
	require.NoError(t, json.Unmarshal(b, &wire))
	assert.Equal(t, "withings", wire.ShimName)
	require.Len(t, wire.Values, 3)
	assert.Equal(t, "z", wire.Values[0].SettingID)
	assert.Equal(t, "a", wire.Values[1].SettingID)
	assert.Equal(t, "extra", wire.Values[2].SettingID)

	var back Configuration
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, "last", back.Values["z"])
}

func TestCoerceValues(t *testing.T) {
	settings := []ConfigurationSetting{
		{SettingID: "i", Type: SettingTypeInteger},
		{SettingID: "f", Type: SettingTypeFloat},
		{SettingID: "b", Type: SettingTypeBoolean},
		{SettingID: "s", Type: SettingTypeString},
	}
	values, err := CoerceValues(settings, map[string]string{"i": "4", "f": "0.5", "b": "true", "s": "7", "x": "y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"i": int64(4), "f": 0.5, "b": true, "s": "7", "x": "y"}, values)

	_, err = CoerceValues(settings, map[string]string{"i": "4.5"})
	assert.Error(t, err)
	_, err = CoerceValues(settings, map[string]string{"b": "maybe"})
	assert.Error(t, err)
}

func TestValidateValues(t *testing.T) {
	minimum := 1.0
	maxLength := 5
	settings := []ConfigurationSetting{
		{SettingID: "client.id", Type: SettingTypeString, Required: true, MaxLength: &maxLength},
		{SettingID: "size", Type: SettingTypeInteger, Min: &minimum},
		{SettingID: "rate", Type: SettingTypeFloat},
	}

	assert.NoError(t, ValidateValues("fitbit", settings, map[string]interface{}{"client.id": "abc", "size": int64(2), "rate": 0.5}))
	assert.Error(t, ValidateValues("fitbit", settings, map[string]interface{}{"size": int64(2)}))
	assert.Error(t, ValidateValues("fitbit", settings, map[string]interface{}{"client.id": "abcdef"}))
	assert.Error(t, ValidateValues("fitbit", settings, map[string]interface{}{"client.id": "abc", "size": int64(0)}))
	assert.Error(t, ValidateValues("fitbit", settings, map[string]interface{}{"client.id": "abc", "rate": "fast"}))
	assert.NoError(t, ValidateValues("misfit", nil, nil))
}

func TestValidateChanges(t *testing.T) {
	minimum := 1.0
	settings := []ConfigurationSetting{
		{SettingID: "client.id", Type: SettingTypeString, Required: true},
		{SettingID: "size", Type: SettingTypeInteger, Min: &minimum},
		{SettingID: "rate", Type: SettingTypeFloat},
	}
	// size kept a value which does not fit the setting
	values := map[string]interface{}{"client.id": "abc", "size": "many", "rate": 0.5}

	assert.NoError(t, ValidateChanges("fitbit", settings, values, []string{"rate"}))
	assert.Error(t, ValidateChanges("fitbit", settings, values, []string{"rate", "size"}))
	assert.Error(t, ValidateChanges("fitbit", settings, map[string]interface{}{"rate": "fast"}, []string{"rate"}))

	// required settings must be present, whether changed or not
	err := ValidateChanges("fitbit", settings, map[string]interface{}{"rate": 0.5}, []string{"rate"})
	var verr *schema.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, err.Error(), "client.id")
	assert.Error(t, ValidateChanges("fitbit", settings, map[string]interface{}{"client.id": 7}, []string{"client.id"}))
	assert.NoError(t, ValidateChanges("fitbit", settings, map[string]interface{}{"client.id": 7}, nil))
}
