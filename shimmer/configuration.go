package shimmer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/shimmer-console/core/logger"
)

// SettingType is the declared type of a configuration setting
type SettingType string

// All valid setting types
const (
	SettingTypeString  SettingType = "string"
	SettingTypeBoolean SettingType = "boolean"
	SettingTypeInteger SettingType = "integer"
	SettingTypeFloat   SettingType = "float"
)

// ConfigurationSetting describes one configurable value of a shim
type ConfigurationSetting struct {
	SettingID   string      `json:"settingId"`
	Type        SettingType `json:"type"`
	Required    bool        `json:"required"`
	Label       string      `json:"label"`
	Description string      `json:"description,omitempty"`
	Length      *int        `json:"length,omitempty"`
	Min         *float64    `json:"min,omitempty"`
	Max         *float64    `json:"max,omitempty"`
	MinLength   *int        `json:"minlength,omitempty"`
	MaxLength   *int        `json:"maxlength,omitempty"`
}

// ConfigurationValue is one value in the wire form of a configuration
type ConfigurationValue struct {
	SettingID string      `json:"settingId,omitempty"`
	Value     interface{} `json:"value"`
}

// Configuration is the configuration of one shim. Values are keyed by setting id.
//
// On the wire values are a sequence of ConfigurationValue. Unmarshalling keeps values as
// decoded, the registry re-types numeric values when it merges a fetched configuration.
type Configuration struct {
	ShimName string
	Settings []ConfigurationSetting
	Values   map[string]interface{}
}

type configurationWire struct {
	ShimName string                 `json:"shimName"`
	Settings []ConfigurationSetting `json:"settings"`
	Values   []ConfigurationValue   `json:"values"`
}

// Setting returns the setting with the given id
func (c *Configuration) Setting(settingID string) (ConfigurationSetting, bool) {
	for _, s := range c.Settings {
		if s.SettingID == settingID {
			return s, true
		}
	}
	return ConfigurationSetting{}, false
}

// Value returns the value of the given setting
func (c *Configuration) Value(settingID string) (interface{}, bool) {
	v, ok := c.Values[settingID]
	return v, ok
}

// Clone returns a deep copy of the configuration. Values themselves are scalars and
// are copied by assignment.
func (c *Configuration) Clone() *Configuration {
	if c == nil {
		return nil
	}
	clone := &Configuration{
		ShimName: c.ShimName,
		Settings: append([]ConfigurationSetting{}, c.Settings...),
		Values:   make(map[string]interface{}, len(c.Values)),
	}
	for k, v := range c.Values {
		clone.Values[k] = v
	}
	return clone
}

// MarshalJSON emits values as a sequence in settings order, followed by values
// without a setting in key order.
func (c Configuration) MarshalJSON() ([]byte, error) {
	wire := configurationWire{
		ShimName: c.ShimName,
		Settings: c.Settings,
		Values:   []ConfigurationValue{},
	}
	if wire.Settings == nil {
		wire.Settings = []ConfigurationSetting{}
	}
	done := map[string]bool{}
	for _, s := range c.Settings {
		if v, ok := c.Values[s.SettingID]; ok && !done[s.SettingID] {
			wire.Values = append(wire.Values, ConfigurationValue{SettingID: s.SettingID, Value: v})
			done[s.SettingID] = true
		}
	}
	var rest []string
	for k := range c.Values {
		if !done[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		wire.Values = append(wire.Values, ConfigurationValue{SettingID: k, Value: c.Values[k]})
	}
	return json.Marshal(wire)
}

// UnmarshalJSON reads the wire form. Values without a setting id are dropped.
func (c *Configuration) UnmarshalJSON(data []byte) error {
	var wire configurationWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c.ShimName = wire.ShimName
	c.Settings = wire.Settings
	c.Values = make(map[string]interface{}, len(wire.Values))
	for _, v := range wire.Values {
		if v.SettingID == "" {
			logger.Default().Debugf("dropping configuration value without settingId for shim %s", wire.ShimName)
			continue
		}
		c.Values[v.SettingID] = v.Value
	}
	return nil
}

// normalizeConfiguration returns a copy of c with all integer and float values re-typed.
// Values which cannot be read as numbers are kept and logged.
func normalizeConfiguration(ctx context.Context, c Configuration) *Configuration {
	rlog := logger.FromContext(ctx)
	c = *c.Clone()
	if c.Settings == nil {
		c.Settings = []ConfigurationSetting{}
	}
	for _, s := range c.Settings {
		raw, ok := c.Values[s.SettingID]
		if !ok || raw == nil {
			continue
		}
		var (
			typed interface{}
			err   error
		)
		switch s.Type {
		case SettingTypeInteger:
			typed, err = parseInteger(raw)
		case SettingTypeFloat:
			typed, err = parseFloat(raw)
		default:
			continue
		}
		if err != nil {
			rlog.Warnf("shim %s setting %s: %v", c.ShimName, s.SettingID, err)
			continue
		}
		c.Values[s.SettingID] = typed
	}
	return &c
}

var (
	integerPrefix = regexp.MustCompile(`^\s*[+-]?\d+`)
	floatPrefix   = regexp.MustCompile(`^\s*[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
)

// parseInteger reads the leading integer of a value, "3.7" and 3.7 both yield 3. Integers
// beyond the int64 range are returned as truncated float64.
func parseInteger(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%v is not an integer", v)
		}
		t := math.Trunc(v)
		if t < math.MinInt64 || t >= -math.MinInt64 {
			return t, nil
		}
		return int64(t), nil
	case json.Number:
		return parseInteger(string(v))
	case string:
		prefix := strings.TrimSpace(integerPrefix.FindString(v))
		if prefix == "" {
			return nil, fmt.Errorf("%q is not an integer", v)
		}
		i, err := strconv.ParseInt(prefix, 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			f, err := strconv.ParseFloat(prefix, 64)
			if err != nil {
				return nil, err
			}
			return math.Trunc(f), nil
		}
		if err != nil {
			return nil, err
		}
		return i, nil
	}
	return nil, fmt.Errorf("%v of type %T is not an integer", raw, raw)
}

// parseFloat reads the leading decimal number of a value, "2.5kg" yields 2.5
func parseFloat(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case json.Number:
		return parseFloat(string(v))
	case string:
		prefix := floatPrefix.FindString(v)
		if prefix == "" {
			return 0, fmt.Errorf("%q is not a number", v)
		}
		return strconv.ParseFloat(strings.TrimSpace(prefix), 64)
	}
	return 0, fmt.Errorf("%v of type %T is not a number", raw, raw)
}

// CoerceValues converts textual values, as typed by an operator, into the declared
// types of the settings. Values of unknown settings stay strings.
func CoerceValues(settings []ConfigurationSetting, text map[string]string) (map[string]interface{}, error) {
	types := map[string]SettingType{}
	for _, s := range settings {
		types[s.SettingID] = s.Type
	}
	values := make(map[string]interface{}, len(text))
	for id, t := range text {
		switch types[id] {
		case SettingTypeInteger:
			i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("setting %s: %q is not an integer", id, t)
			}
			values[id] = i
		case SettingTypeFloat:
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil {
				return nil, fmt.Errorf("setting %s: %q is not a number", id, t)
			}
			values[id] = f
		case SettingTypeBoolean:
			b, err := strconv.ParseBool(strings.TrimSpace(t))
			if err != nil {
				return nil, fmt.Errorf("setting %s: %q is not a boolean", id, t)
			}
			values[id] = b
		default:
			values[id] = t
		}
	}
	return values, nil
}
