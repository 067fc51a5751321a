package domain

import (
	"fmt"
	"regexp"
)

// Category is the semantic label of a statement, used for styling and as a
// metrics tag.
type Category int

const (
	CategoryOther Category = iota
	CategoryRollback
	CategoryLock
	CategorySelect
	CategoryInsert
	CategoryUpdate
	CategoryDelete
	CategoryTransaction
)

var categoryNames = [...]string{
	CategoryOther:       "OTHER",
	CategoryRollback:    "ROLLBACK",
	CategoryLock:        "LOCK_OR_SELECT_FOR_UPDATE",
	CategorySelect:      "SELECT",
	CategoryInsert:      "INSERT",
	CategoryUpdate:      "UPDATE",
	CategoryDelete:      "DELETE",
	CategoryTransaction: "TRANSACTION_BOUNDARY",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return categoryNames[CategoryOther]
	}
	return categoryNames[c]
}

// MarshalText lets categories appear by name in JSON and YAML.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	for i, name := range categoryNames {
		if name == string(text) {
			*c = Category(i)
			return nil
		}
	}
	return fmt.Errorf("unknown query category %q", text)
}

// Categories returns every category in classification precedence order,
// followed by CategoryOther.
func Categories() []Category {
	return []Category{
		CategoryRollback, CategoryLock, CategorySelect, CategoryInsert,
		CategoryUpdate, CategoryDelete, CategoryTransaction, CategoryOther,
	}
}

type classifyRule struct {
	category Category
	patterns []*regexp.Regexp
}

// Rules are evaluated in order; the first match wins. \A and \z anchor at
// the start and end of the whole text rather than of a line.
var classifyRules = []classifyRule{
	{CategoryRollback, []*regexp.Regexp{regexp.MustCompile(`(?is)\A\s*rollback`)}},
	{CategoryLock, []*regexp.Regexp{
		regexp.MustCompile(`(?is)select .*for update`),
		regexp.MustCompile(`(?is)\A\s*lock`),
	}},
	{CategorySelect, []*regexp.Regexp{regexp.MustCompile(`(?i)\A\s*select`)}},
	{CategoryInsert, []*regexp.Regexp{regexp.MustCompile(`(?i)\A\s*insert`)}},
	{CategoryUpdate, []*regexp.Regexp{regexp.MustCompile(`(?i)\A\s*update`)}},
	{CategoryDelete, []*regexp.Regexp{regexp.MustCompile(`(?i)\A\s*delete`)}},
	{CategoryTransaction, []*regexp.Regexp{regexp.MustCompile(`(?i)transaction\s*\z`)}},
}

// Classify maps statement text to its Category. It is pure and safe for
// concurrent use; empty or unparseable text is CategoryOther.
func Classify(sql string) Category {
	for _, rule := range classifyRules {
		for _, re := range rule.patterns {
			if re.MatchString(sql) {
				return rule.category
			}
		}
	}
	return CategoryOther
}
