package shimmer

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/relabs-tech/shimmer-console/core/schema"
)

const configurationSchemaBase = "https://shimmer.openmhealth.org/configuration/"

var jsonSchemaTypes = map[SettingType]string{
	SettingTypeString:  "string",
	SettingTypeBoolean: "boolean",
	SettingTypeInteger: "integer",
	SettingTypeFloat:   "number",
}

func configurationSchemaID(shimName string) string {
	return configurationSchemaBase + url.PathEscape(shimName)
}

// configurationSchema builds the JSON schema with the given id describing valid values for settings
func configurationSchema(id string, settings []ConfigurationSetting) map[string]interface{} {
	properties := map[string]interface{}{}
	required := []string{}
	for _, s := range settings {
		property := map[string]interface{}{}
		if t, ok := jsonSchemaTypes[s.Type]; ok {
			property["type"] = t
		}
		if s.Min != nil {
			property["minimum"] = *s.Min
		}
		if s.Max != nil {
			property["maximum"] = *s.Max
		}
		if s.Length != nil {
			property["minLength"] = *s.Length
			property["maxLength"] = *s.Length
		}
		if s.MinLength != nil {
			property["minLength"] = *s.MinLength
		}
		if s.MaxLength != nil {
			property["maxLength"] = *s.MaxLength
		}
		properties[s.SettingID] = property
		if s.Required {
			required = append(required, s.SettingID)
		}
	}
	document := map[string]interface{}{
		"$id":        id,
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		document["required"] = required
	}
	return document
}

// configurationSchemas caches the last compiled schema per shim
var configurationSchemas = schema.NewSet()

// ValidateValues checks values against the settings of a shim configuration. Violations
// are reported as *schema.ValidationError.
func ValidateValues(shimName string, settings []ConfigurationSetting, values map[string]interface{}) error {
	return validate(configurationSchemaID(shimName), settings, values)
}

// ValidateChanges checks the values of the changed settings and the presence of all required
// settings. Values of unchanged settings are not checked, so a stored value which does not fit
// its setting does not block saving others.
func ValidateChanges(shimName string, settings []ConfigurationSetting, values map[string]interface{}, changed []string) error {
	changed = append([]string{}, changed...)
	sort.Strings(changed)
	isChanged := map[string]bool{}
	for _, id := range changed {
		isChanged[id] = true
	}
	checked := []ConfigurationSetting{}
	for _, s := range settings {
		switch {
		case isChanged[s.SettingID]:
			checked = append(checked, s)
		case s.Required:
			checked = append(checked, ConfigurationSetting{SettingID: s.SettingID, Required: true})
		}
	}
	id := configurationSchemaID(shimName) + "/changed/" + url.PathEscape(strings.Join(changed, ","))
	return validate(id, checked, values)
}

func validate(id string, settings []ConfigurationSetting, values map[string]interface{}) error {
	id, err := configurationSchemas.Add(configurationSchema(id, settings))
	if err != nil {
		return fmt.Errorf("configuration schema %s: %w", id, err)
	}
	if values == nil {
		values = map[string]interface{}{}
	}
	return configurationSchemas.Validate(values, id)
}
