package model

import (
	"fmt"
	"strings"
)

// Category is the fixed language/framework label of a snippet. Sub-categories
// hang off one of these values.
type Category string

const (
	CategoryHTML       Category = "HTML"
	CategoryCSS        Category = "CSS"
	CategoryJavaScript Category = "JavaScript"
	CategoryPython     Category = "Python"
	CategorySQL        Category = "SQL"
	CategoryReact      Category = "React"
	CategoryTypeScript Category = "TypeScript"
	CategoryCSharp     Category = "C#"
	CategoryJava       Category = "Java"
	CategoryGo         Category = "Go"
	CategoryPHP        Category = "PHP"
	CategoryCPP        Category = "C++"
	CategoryKotlin     Category = "Kotlin"
	CategoryRust       Category = "Rust"
	CategorySwift      Category = "Swift"
	CategoryAngular    Category = "Angular"
	CategoryVue        Category = "Vue"
	CategoryOther      Category = "Other"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryHTML, CategoryCSS, CategoryJavaScript, CategoryPython, CategorySQL,
	CategoryReact, CategoryTypeScript, CategoryCSharp, CategoryJava, CategoryGo,
	CategoryPHP, CategoryCPP, CategoryKotlin, CategoryRust, CategorySwift,
	CategoryAngular, CategoryVue, CategoryOther,
}

// ClassifiableCategories is the subset the classification oracle may answer with.
var ClassifiableCategories = []Category{
	CategoryHTML, CategoryCSS, CategoryJavaScript, CategoryPython, CategorySQL,
	CategoryReact, CategoryTypeScript, CategoryCSharp, CategoryOther,
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }

// ParseCategory accepts an exact category name.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.TrimSpace(s))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// MatchClassifiable maps an oracle label onto ClassifiableCategories,
// ignoring case. The second result is false for anything outside the subset.
func MatchClassifiable(label string) (Category, bool) {
	label = strings.TrimSpace(label)
	for _, c := range ClassifiableCategories {
		if strings.EqualFold(label, string(c)) {
			return c, true
		}
	}
	return "", false
}
