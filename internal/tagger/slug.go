package tagger

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slug converts a label into its stable tag-id suffix: diacritics stripped,
// lowercased, spaces replaced with underscores.
func Slug(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, _ := transform.String(t, name)
	return strings.ReplaceAll(strings.ToLower(stripped), " ", "_")
}

// TagID builds the deterministic id for a label, e.g. "object_car" or
// "scene_train_station".
func TagID(tagType, name string) string {
	return tagType + "_" + Slug(name)
}
