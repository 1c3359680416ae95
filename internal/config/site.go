package config

// SettingValues holds raw renderer settings as read from YAML, keyed by
// setting name (for example open_links_in_new_tab). Values keep their YAML
// type so the renderer can tell the boolean false apart from other values.
type SettingValues map[string]any

// Lookup returns the raw value of a setting.
func (s SettingValues) Lookup(key string) (any, bool) {
	v, ok := s[key]
	return v, ok
}

// SiteConfig holds options for one forum host.
type SiteConfig struct {
	// Cookie is sent when fetching pages from this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent to this host, such as Api-Key.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Settings override the file-level renderer settings for this host.
	Settings SettingValues `yaml:"settings,omitempty"`

	// Selectors override the file-level field selectors for this host.
	Selectors []string `yaml:"selectors,omitempty"`
}

// File represents the structure of the .fieldlink configuration file.
type File struct {
	// Settings are the renderer settings applied to every source.
	Settings SettingValues `yaml:"settings,omitempty"`

	// Selectors replace the built-in field selectors.
	Selectors []string `yaml:"selectors,omitempty"`

	// Sites maps host names (for example "forum.example.com") to their
	// options.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// SiteConfig returns the options for host, merged with the file-level
// settings and selectors. Site values win.
func (cf *File) SiteConfig(host string) SiteConfig {
	result := SiteConfig{
		Settings:  cf.SiteSettings(host),
		Selectors: cf.Selectors,
	}

	site, ok := cf.Sites[host]
	if !ok {
		return result
	}

	result.Cookie = site.Cookie
	if len(site.Headers) > 0 {
		result.Headers = make(map[string]string, len(site.Headers))
		for k, v := range site.Headers {
			result.Headers[k] = v
		}
	}
	if len(site.Selectors) > 0 {
		result.Selectors = site.Selectors
	}
	return result
}

// SiteSettings returns the renderer settings for host: the file-level
// settings overlaid with the host's own. The result is never nil.
func (cf *File) SiteSettings(host string) SettingValues {
	merged := make(SettingValues, len(cf.Settings))
	for k, v := range cf.Settings {
		merged[k] = v
	}
	if site, ok := cf.Sites[host]; ok {
		for k, v := range site.Settings {
			merged[k] = v
		}
	}
	return merged
}
