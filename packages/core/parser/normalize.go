package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	capitalWordPattern = regexp.MustCompile(`(.)(\p{Lu}\p{Ll}+)`)
	lowerUpperPattern  = regexp.MustCompile(`([\p{Ll}\d])(\p{Lu})`)
	leadingTestPattern = regexp.MustCompile(`^test(_|$)`)
	trailingTestPatten = regexp.MustCompile(`(^|_)test$`)
	separatorPattern   = regexp.MustCompile(`[_\s]+`)
)

// Normalize turns a function identifier into a readable sentence:
//
//	test_function_name    -> Function name
//	testCamelCase         -> Camel case
//	this_is_a_simple_test -> This is a simple
//
// A leading or trailing "test" word is dropped unless nothing else remains.
// An identifier made only of separators is returned as is.
func Normalize(identifier string) string {
	if identifier == "" {
		return ""
	}
	snake := capitalWordPattern.ReplaceAllString(identifier, "${1}_${2}")
	snake = lowerUpperPattern.ReplaceAllString(snake, "${1}_${2}")
	snake = strings.ToLower(snake)

	stripped := leadingTestPattern.ReplaceAllString(snake, "")
	stripped = trailingTestPatten.ReplaceAllString(stripped, "")

	phrase := words(stripped)
	if phrase == "" {
		phrase = words(snake)
	}
	if phrase == "" {
		return identifier
	}
	return capitalize(phrase)
}

func words(s string) string {
	return strings.TrimSpace(separatorPattern.ReplaceAllString(s, " "))
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
