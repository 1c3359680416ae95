package model

// Settings holds renderer settings for one render pass.
type Settings struct {
	// OpenInNewTab adds target="_blank" to every generated anchor.
	OpenInNewTab bool `json:"open_in_new_tab" yaml:"open_links_in_new_tab"`
}

// DefaultSettings returns the settings used when the site configuration
// does not say otherwise.
func DefaultSettings() Settings {
	return Settings{OpenInNewTab: true}
}
