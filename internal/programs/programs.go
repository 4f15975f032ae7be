// Package programs holds the fixed catalogue of TV programs that critiques can target.
package programs

import "strings"

var catalogue = []string{
	"Love Island",
	"Turkish News",
	"Cooking Show",
	"Sports Highlights",
}

// All returns a copy of the catalogue in display order.
func All() []string {
	return append([]string(nil), catalogue...)
}

// Valid reports whether name exactly matches a catalogue entry.
func Valid(name string) bool {
	for _, p := range catalogue {
		if p == name {
			return true
		}
	}
	return false
}

// Slug returns the storage-safe folder name for a program ("Cooking Show" -> "Cooking_Show").
func Slug(name string) string {
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
