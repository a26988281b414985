package models

// Sections is the fixed set of course sections materials can belong to.
var Sections = map[string]bool{
	"introduction": true,
	"lr":           true,
	"rc":           true,
	"final-tips":   true,
}

// ValidSection reports whether s is one of the allowed course sections.
func ValidSection(s string) bool {
	return Sections[s]
}
