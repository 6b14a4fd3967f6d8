package fieldconfig

import (
	"strconv"
	"strings"

	"github.com/goliatone/go-formly/pkg/form"
)

// Built-in parser names.
const (
	ParserTrim    = "trim"
	ParserLower   = "lower"
	ParserUpper   = "upper"
	ParserNumber  = "number"
	ParserInteger = "integer"
	ParserEmpty   = "emptyAsNil"
)

func builtinParsers() map[string]form.Parser {
	return map[string]form.Parser{
		ParserTrim:    mapString(strings.TrimSpace),
		ParserLower:   mapString(strings.ToLower),
		ParserUpper:   mapString(strings.ToUpper),
		ParserNumber:  parseNumber,
		ParserInteger: parseInteger,
		ParserEmpty:   emptyAsNil,
	}
}

func mapString(fn func(string) string) form.Parser {
	return func(value any) any {
		if s, ok := value.(string); ok {
			return fn(s)
		}
		return value
	}
}

// parseNumber converts numeric strings to float64 and leaves anything else
// untouched, so partially typed input survives.
func parseNumber(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return value
	}
	return f
}

func parseInteger(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return value
	}
	return n
}

func emptyAsNil(value any) any {
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}
	return value
}
