package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// StageLabel renders an identifier such as "spritesheet" or "generate.action"
// as a display label ("Spritesheet", "Generate Action").
func StageLabel(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	fields := strings.FieldsFunc(id, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	return titleCaser.String(strings.Join(fields, " "))
}
