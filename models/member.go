package models

// SessionPreference is one acceptable attribute combination for a member,
// optionally narrowed to specific start hours and dates. Preferences are
// ranked by their position in the member's list; the list order is the
// only priority signal.
type SessionPreference struct {
	Attributes map[string]string `json:"attributes"`
	Hours      []string          `json:"hours,omitempty"`
	Dates      []string          `json:"dates,omitempty"`
}

// Member is one roster entry with its ranked session preferences.
type Member struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Preferences []SessionPreference `json:"preferences"`
}
