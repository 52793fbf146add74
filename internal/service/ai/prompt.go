package ai

import (
	"fmt"
	"strings"
)

const generateSystemPrompt = "You are an expert at writing positive affirmations. " +
	"Reply with the affirmations only, each on its own line, with no numbering, quotes or commentary."

const validateSystemPrompt = `You review short personal affirmations written by a user before they are read aloud.
An affirmation should be a short, positive, first-person statement in the present tense.

Decide one of:
- "ok": every affirmation is fine as written.
- "suggestions": some affirmations can be improved; propose a replacement for each of them.
- "rejected": the list is harmful, hostile or not affirmations at all.

Reply with a single JSON object and nothing else:
{"status": "ok" | "suggestions" | "rejected",
 "message": "<one sentence for the user>",
 "suggestions": [{"original": "<exact original text>", "suggested": "<improved text>", "reason": "<why>"}]}

"original" must repeat the affirmation exactly as given. Omit "suggestions" unless status is "suggestions".`

// buildGenerateQuery phrases the user turn for a generation request.
func buildGenerateQuery(goal string, count int) string {
	return fmt.Sprintf("Create %d positive affirmations for this goal: %s", count, goal)
}

// buildValidateQuery lists the affirmations one per line so the model can
// echo each original verbatim.
func buildValidateQuery(items []string) string {
	var builder strings.Builder
	builder.WriteString("Review these affirmations:\n")
	for _, item := range items {
		builder.WriteString(item)
		builder.WriteString("\n")
	}
	return builder.String()
}
