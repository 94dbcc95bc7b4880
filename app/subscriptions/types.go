package subscriptions

// File is one user's subscription seed file. The user ID is derived from
// the filename.
type File struct {
	UserID string

	Name        string            `yaml:"name"`
	Sources     []SourceEntry     `yaml:"sources"`
	Filters     []FilterEntry     `yaml:"filters"`
	Preferences *PreferencesEntry `yaml:"preferences"`
}

type SourceEntry struct {
	Type string `yaml:"type"`
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// FilterEntry is either a keyword rule or a duration keep-range rule.
type FilterEntry struct {
	Keyword    string `yaml:"keyword"`
	MinMinutes *int   `yaml:"min_minutes"`
	MaxMinutes *int   `yaml:"max_minutes"`
}

type PreferencesEntry struct {
	BacklogRatio   *float64 `yaml:"backlog_ratio"`
	MaxConsecutive *int     `yaml:"max_consecutive"`
}
