// Package slug derives url slugs for catalog entities.
package slug

import "strings"

// From lowercases name and joins its ASCII letter and digit runs with dashes.
func From(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return strings.Join(fields, "-")
}
