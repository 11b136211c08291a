package orchestrator

import "strings"

// Intent detection is deliberately literal keyword matching. The exact
// token sets below are a behavioral contract: phase-advance tests enumerate
// them, and changing them changes when conversations move forward.

// affirmativeTokens signal agreement to generate the diagram.
var affirmativeTokens = []string{"yes", "sure", "okay", "generate", "create"}

// confirmTokens signal agreement to kick off opportunity suggestions.
var confirmTokens = []string{"yes", "sure", "okay", "please"}

// suggestionTokens mark the suggestion topic in the user's turn.
var suggestionTokens = []string{"suggest", "opportunities", "ai"}

// assistantSuggestionTokens mark the topic in the assistant's prior turn.
// "ai" is excluded here: substring matching would arm the trigger on any
// assistant prose containing "email", "waiting", and the like.
var assistantSuggestionTokens = []string{"suggest", "opportunities"}

func containsAny(text string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}

// wantsDiagram reports whether the user is agreeing to diagram generation:
// "diagram" mentioned in the user's turn or the assistant's prior turn, AND
// an affirmative token in the user's turn. The explicit phrase
// "generate diagram" always triggers.
func wantsDiagram(userText, lastAssistant string) bool {
	user := strings.ToLower(userText)
	if strings.Contains(user, "generate diagram") {
		return true
	}
	mentioned := strings.Contains(user, "diagram") || strings.Contains(strings.ToLower(lastAssistant), "diagram")
	return mentioned && containsAny(user, affirmativeTokens)
}

// wantsSuggestions reports whether the user is asking to kick off
// opportunity generation: a suggestion topic token in the user's turn (or a
// topic mention in the assistant's prior turn) AND a confirmation token in
// the user's turn. The explicit phrase "generate suggestions" always
// triggers.
func wantsSuggestions(userText, lastAssistant string) bool {
	user := strings.ToLower(userText)
	if strings.Contains(user, "generate suggestions") {
		return true
	}
	mentioned := containsAny(user, suggestionTokens) || containsAny(strings.ToLower(lastAssistant), assistantSuggestionTokens)
	return mentioned && containsAny(user, confirmTokens)
}
