package search

import (
	"strconv"
	"strings"
)

const defaultLimit = 10

// Query represents the structured parameters of a feed search.
// It decouples the raw user input from the actual index requirements.
type Query struct {
	RawInput string // The original input from the user
	Terms    string // The actual text to search in Bluge
	Author   string // Optional author email, matched case-insensitively
	Limit    int    // Number of results
}

// NewQuery parses a raw string to extract command-line style arguments.
// Example: dunk contest --author magic@lakers.com --limit 5
func NewQuery(input string) Query {
	query := Query{RawInput: input, Limit: defaultLimit}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			value := parts[i+1]
			switch strings.TrimPrefix(part, "--") {
			case "author":
				query.Author = strings.ToLower(value)
			case "limit":
				if n, err := strconv.Atoi(value); err == nil && n > 0 {
					query.Limit = n
				}
			}
			i++ // Skip the value part in next iteration
			continue
		}
		textTerms = append(textTerms, part)
	}

	query.Terms = strings.Join(textTerms, " ")
	return query
}

func (q Query) IsEmpty() bool {
	return q.Terms == "" && q.Author == ""
}
