package utils

import (
	"regexp"
	"strings"
)

var spaces = regexp.MustCompile(` +`)

// ConvertToSlug lowercases text and joins words with "-" (users, teams).
func ConvertToSlug(text string) string {
	return spaces.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), "-")
}

func TitleCase(text string) string {
	words := strings.Split(strings.ToLower(text), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}
