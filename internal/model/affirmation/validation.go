package affirmation

// Status is the provider's verdict on a list of custom affirmations.
type Status string

const (
	StatusOK          Status = "ok"
	StatusSuggestions Status = "suggestions"
	StatusRejected    Status = "rejected"
)

// Valid reports whether s is one of the three known verdicts.
func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusSuggestions, StatusRejected:
		return true
	default:
		return false
	}
}

// Suggestion proposes a replacement for the item whose text equals Original.
type Suggestion struct {
	Original  string `json:"original"`
	Suggested string `json:"suggested"`
	Reason    string `json:"reason,omitempty"`
}

// ValidationResult is the structured verdict returned by the text client.
type ValidationResult struct {
	Status      Status       `json:"status"`
	Message     string       `json:"message"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}
