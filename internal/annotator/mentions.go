package annotator

import "strings"

// mentionQueryAt extracts the @-mention query active at the caret: the text
// between the nearest preceding "@" and the caret, provided the "@" starts a
// word and the span contains no whitespace. ok is false when no mention is
// being typed.
func mentionQueryAt(text string, caret int) (string, bool) {
	runes := []rune(text)
	if caret < 0 || caret > len(runes) {
		return "", false
	}
	at := -1
	for i := caret - 1; i >= 0; i-- {
		ch := runes[i]
		if ch == '@' {
			at = i
			break
		}
		if ch == ' ' || ch == '\n' || ch == '\t' {
			return "", false
		}
	}
	if at < 0 {
		return "", false
	}
	if at > 0 {
		prev := runes[at-1]
		if prev != ' ' && prev != '\n' && prev != '\t' {
			return "", false
		}
	}
	return string(runes[at+1 : caret]), true
}

// CompleteMention splices a chosen display name into the comment text,
// replacing the active @query at the caret. It returns the new text and the
// new caret position; text is returned unchanged when no mention is active.
func CompleteMention(text string, caret int, user User) (string, int) {
	query, ok := mentionQueryAt(text, caret)
	if !ok {
		return text, caret
	}
	runes := []rune(text)
	start := caret - len([]rune(query)) - 1
	mention := "@" + user.DisplayName + " "
	out := string(runes[:start]) + mention + string(runes[caret:])
	return out, start + len([]rune(mention))
}

// FilterUsers is the client-side substring fallback used when the user
// search collaborator returns a broad page: case-insensitive match on
// display name or email.
func FilterUsers(users []User, query string) []User {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return users
	}
	matched := make([]User, 0, len(users))
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.DisplayName), query) ||
			strings.Contains(strings.ToLower(u.Email), query) {
			matched = append(matched, u)
		}
	}
	return matched
}
