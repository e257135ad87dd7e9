// Package privatechat derives the canonical key of a one-to-one conversation
// and makes sure the conversation record exists before messages are written.
package privatechat

import (
	"fmt"
	"pick-roll/errors"
	"strings"
)

const separator = "_"

// DeriveConversationKey returns the key shared by both participants,
// whatever the argument order: the trimmed ids sorted ascending, joined by "_".
func DeriveConversationKey(idA, idB string) (string, error) {
	a, b := strings.TrimSpace(idA), strings.TrimSpace(idB)
	if a == "" || b == "" {
		return "", fmt.Errorf("%w: both participant ids are required", errors.ErrInvalidArgument)
	}
	// The key becomes a path segment; a "/" would address another record.
	if strings.Contains(a, "/") || strings.Contains(b, "/") {
		return "", fmt.Errorf("%w: participant ids cannot contain \"/\"", errors.ErrInvalidArgument)
	}
	if b < a {
		a, b = b, a
	}
	return a + separator + b, nil
}

// Participants returns the sorted, trimmed pair stored on the conversation record.
func Participants(idA, idB string) []string {
	a, b := strings.TrimSpace(idA), strings.TrimSpace(idB)
	if b < a {
		a, b = b, a
	}
	return []string{a, b}
}
