package transfer

// SettingsUpdate is the posting-defaults update body. Hashtags are stored
// without the leading #.
type SettingsUpdate struct {
	DefaultPrivacyLevel string   `json:"default_privacy_level"`
	DefaultHashtags     []string `json:"default_hashtags"`
}
