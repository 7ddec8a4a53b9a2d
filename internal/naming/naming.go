package naming

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// Delimiter joins a discriminator prefix and a type tag into a composite
// attribute name, e.g. "buyer__dealer". It never occurs inside a snake_case
// type or field name.
const Delimiter = "__"

// CamelToSnake converts a CamelCase string to snake_case.
// Consecutive uppercase letters (acronyms) are kept together:
// "ID" → "id", "UserID" → "user_id", "CreatedAt" → "created_at".
func CamelToSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				next := rune(0)
				if i+1 < len(runes) {
					next = runes[i+1]
				}
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && unicode.IsLower(next)) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SnakeToCamel converts a snake_case string to CamelCase.
// "id" becomes "ID" so that "buyer_id" maps to the conventional "BuyerID".
func SnakeToCamel(s string) string {
	var b strings.Builder
	for part := range strings.SplitSeq(s, "_") {
		if part == "" {
			continue
		}
		if part == "id" {
			b.WriteString("ID")
			continue
		}
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}

// Underscore returns the canonical tag for a type name. It is the same
// conversion the orm package uses for default table names, so a type tag
// always lines up with the table it was derived from.
func Underscore(typeName string) string {
	return CamelToSnake(typeName)
}

// Prefixed joins two name fragments with Delimiter.
func Prefixed(a, b string) string {
	return a + Delimiter + b
}

// CollectionName returns the default owner-side collection name for a child
// type: the underscored name with a trailing "s". Irregular plurals are not
// handled; pass an explicit name for those.
func CollectionName(childTypeName string) string {
	return Underscore(childTypeName) + "s"
}

// TableName converts a CamelCase type name to a snake_case plural table name.
// e.g. "User" -> "users", "UserProfile" -> "user_profiles"
func TableName(typeName string) string {
	return inflection.Plural(CamelToSnake(typeName))
}
