package catalog

import "strings"

const (
	DefaultListLimit   = 50
	DefaultSearchLimit = 20
	MaxLimit           = 100
)

// ListFilter narrows the plain product listing.
type ListFilter struct {
	Category string
	Search   string
	Limit    int
	Offset   int
}

// SearchFilter narrows the advanced search. Nil bounds are not applied.
type SearchFilter struct {
	Query     string
	Category  string
	MinPrice  *float64
	MaxPrice  *float64
	MinRating *float64
	Limit     int
	Offset    int
}

func window(limit, offset, fallback int) (int, int) {
	if limit <= 0 {
		limit = fallback
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// containsPattern builds a LIKE pattern matching term anywhere, with wildcards escaped.
func containsPattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}
