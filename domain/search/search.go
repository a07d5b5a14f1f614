package search

import (
	"strconv"
	"strings"
)

// Query is a parsed search input.
// A zero Limit means the server side default applies.
type Query struct {
	Terms string
	Limit int
}

// Parse extracts command-line style flags from a raw search input.
// Example: invoice march --limit 5
// Unknown flags are dropped along with their value; a trailing flag without value is kept as a term.
func Parse(input string) Query {
	var query Query
	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			key := strings.TrimPrefix(part, "--")
			if key == "limit" {
				if limit, err := strconv.Atoi(parts[i+1]); err == nil && limit > 0 {
					query.Limit = limit
				}
			}
			i++
			continue
		}
		textTerms = append(textTerms, part)
	}

	query.Terms = strings.Join(textTerms, " ")
	return query
}
