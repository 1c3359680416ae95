package renderer

import "github.com/nao1215/fieldlink/internal/model"

// SettingKeyOpenInNewTab is the site setting that controls target="_blank".
const SettingKeyOpenInNewTab = "open_links_in_new_tab"

// SettingsSource looks up raw site settings by key.
// A missing key reports ok=false.
type SettingsSource interface {
	Lookup(key string) (value any, ok bool)
}

// SettingsMap is a SettingsSource backed by a map.
type SettingsMap map[string]any

// Lookup implements SettingsSource.
func (m SettingsMap) Lookup(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// ResolveSettings reads renderer settings from src.
// Links open in a new tab unless the source holds the boolean false for
// SettingKeyOpenInNewTab; a nil source, a missing key, or a value of any
// other type all keep the default.
func ResolveSettings(src SettingsSource) model.Settings {
	settings := model.DefaultSettings()
	if src == nil {
		return settings
	}
	if v, ok := src.Lookup(SettingKeyOpenInNewTab); ok {
		if b, isBool := v.(bool); isBool && !b {
			settings.OpenInNewTab = false
		}
	}
	return settings
}
