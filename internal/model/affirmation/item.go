package affirmation

import "strings"

// Origin records how an item's text came to be.
type Origin string

const (
	OriginGenerated         Origin = "generated"
	OriginUserEntered       Origin = "userEntered"
	OriginSuggestionApplied Origin = "suggestionApplied"
)

// Item is a single affirmation line.
type Item struct {
	Text   string `json:"text"`
	Origin Origin `json:"origin"`
}

// SplitLines splits free text on line breaks and returns the trimmed,
// non-blank lines in order.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Texts returns the item texts in order.
func Texts(items []Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Text
	}
	return out
}

func newItems(lines []string, origin Origin) []Item {
	items := make([]Item, 0, len(lines))
	for _, line := range lines {
		items = append(items, Item{Text: line, Origin: origin})
	}
	return items
}
