// Package expression compiles the string expressions used by field configs
// (hide expressions and expression properties) into a small AST that is
// evaluated against an explicit environment.
//
// Supported syntax:
//   - paths rooted at `model`, `formState` or `field`: `model.address.city`
//   - literals: strings ('a' or "a"), numbers, true/false, null/undefined
//   - negation: `!model.visibilityToggle`
//   - equality: `model.type == "company"`, `field.key != 'name'`
//   - composition: `a && b`, `a || b` (returns the deciding operand)
//   - grouping with parentheses
//
// Evaluation is read-only: nothing in the environment is mutated.
package expression

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goliatone/go-formly/internal/pathutil"
	"github.com/goliatone/go-formly/pkg/observe"
)

// Root identifiers available to expressions.
const (
	RootModel     = "model"
	RootFormState = "formState"
	RootField     = "field"
)

// FieldScope exposes a field to expressions.
type FieldScope interface {
	Lookup(path []string) (any, bool)
	Snapshot() map[string]any
}

// Env is the evaluation environment of one expression call.
type Env struct {
	Model     map[string]any
	FormState map[string]any
	Field     FieldScope
}

// Program is a compiled expression.
type Program interface {
	Eval(env Env) (any, error)
	Source() string
}

// Compiler turns expression source into a Program.
type Compiler interface {
	Compile(source string) (Program, error)
}

// Parser is the default Compiler.
type Parser struct{}

// New returns the default expression compiler.
func New() *Parser { return &Parser{} }

// Compile parses source once; the returned Program can be evaluated many times.
func (p *Parser) Compile(source string) (Program, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return nil, errors.New("expression: empty expression")
	}

	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, err
	}
	node, err := parseExpression(tokens)
	if err != nil {
		return nil, err
	}
	return &program{source: trimmed, root: node}, nil
}

type program struct {
	source string
	root   exprNode
}

func (p *program) Eval(env Env) (any, error) {
	return p.root.eval(env)
}

func (p *program) Source() string { return p.source }

type tokenKind int

const (
	tokenIdentifier tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenNull
	tokenEq
	tokenNeq
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	raw  string
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0

	next := func() byte {
		if i >= len(input) {
			return 0
		}
		return input[i]
	}

	consume := func() byte {
		if i >= len(input) {
			return 0
		}
		ch := input[i]
		i++
		return ch
	}

	for i < len(input) {
		ch := next()
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			i++
			continue
		}

		switch ch {
		case '(':
			consume()
			tokens = append(tokens, token{kind: tokenLParen, raw: "("})
			continue
		case ')':
			consume()
			tokens = append(tokens, token{kind: tokenRParen, raw: ")"})
			continue
		case '!':
			consume()
			if next() == '=' {
				consume()
				if next() == '=' {
					consume()
				}
				tokens = append(tokens, token{kind: tokenNeq, raw: "!="})
				continue
			}
			tokens = append(tokens, token{kind: tokenNot, raw: "!"})
			continue
		case '=':
			consume()
			if next() != '=' {
				return nil, fmt.Errorf("expression: unexpected '='; use '=='")
			}
			consume()
			if next() == '=' {
				consume()
			}
			tokens = append(tokens, token{kind: tokenEq, raw: "=="})
			continue
		case '&':
			consume()
			if next() != '&' {
				return nil, fmt.Errorf("expression: unexpected '&'; use '&&'")
			}
			consume()
			tokens = append(tokens, token{kind: tokenAnd, raw: "&&"})
			continue
		case '|':
			consume()
			if next() != '|' {
				return nil, fmt.Errorf("expression: unexpected '|'; use '||'")
			}
			consume()
			tokens = append(tokens, token{kind: tokenOr, raw: "||"})
			continue
		case '"', '\'':
			value, err := readString(input, &i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenString, raw: value})
			continue
		default:
			start := i
			for i < len(input) {
				c := input[i]
				if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '(' || c == ')' || c == '!' || c == '=' || c == '&' || c == '|' || c == '"' || c == '\'' {
					break
				}
				i++
			}
			raw := input[start:i]
			switch raw {
			case "true", "false":
				tokens = append(tokens, token{kind: tokenBool, raw: raw})
			case "null", "nil", "undefined":
				tokens = append(tokens, token{kind: tokenNull, raw: "null"})
			default:
				if looksLikeNumber(raw) {
					tokens = append(tokens, token{kind: tokenNumber, raw: raw})
				} else {
					tokens = append(tokens, token{kind: tokenIdentifier, raw: raw})
				}
			}
		}
	}

	return tokens, nil
}

func readString(input string, pos *int) (string, error) {
	quote := input[*pos]
	*pos++
	var b strings.Builder
	for *pos < len(input) {
		c := input[*pos]
		*pos++
		if c == '\\' {
			if *pos >= len(input) {
				break
			}
			escaped := input[*pos]
			*pos++
			switch escaped {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(escaped)
			}
			continue
		}
		if c == quote {
			return b.String(), nil
		}
		b.WriteByte(c)
	}
	return "", errors.New("expression: unterminated string literal")
}

func looksLikeNumber(raw string) bool {
	if raw == "" {
		return false
	}
	ch := raw[0]
	return (ch >= '0' && ch <= '9') || ch == '-' || ch == '+'
}

type exprNode interface {
	eval(env Env) (any, error)
}

type exprOr struct {
	left  exprNode
	right exprNode
}

func (n exprOr) eval(env Env) (any, error) {
	left, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	if Truthy(left) {
		return left, nil
	}
	return n.right.eval(env)
}

type exprAnd struct {
	left  exprNode
	right exprNode
}

func (n exprAnd) eval(env Env) (any, error) {
	left, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	if !Truthy(left) {
		return left, nil
	}
	return n.right.eval(env)
}

type exprNot struct {
	inner exprNode
}

func (n exprNot) eval(env Env) (any, error) {
	v, err := n.inner.eval(env)
	if err != nil {
		return nil, err
	}
	return !Truthy(v), nil
}

type exprCompare struct {
	left  exprNode
	op    tokenKind
	right exprNode
}

func (n exprCompare) eval(env Env) (any, error) {
	left, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	right, err := n.right.eval(env)
	if err != nil {
		return nil, err
	}
	eq := LooseEqual(left, right)
	if n.op == tokenNeq {
		return !eq, nil
	}
	return eq, nil
}

type exprLiteral struct {
	value any
}

func (n exprLiteral) eval(Env) (any, error) { return n.value, nil }

type exprPath struct {
	root     string
	segments []string
}

func (n exprPath) eval(env Env) (any, error) {
	switch n.root {
	case RootModel:
		return lookupMap(env.Model, n.segments), nil
	case RootFormState:
		return lookupMap(env.FormState, n.segments), nil
	case RootField:
		if env.Field == nil {
			return nil, nil
		}
		if len(n.segments) == 0 {
			return env.Field.Snapshot(), nil
		}
		v, ok := env.Field.Lookup(n.segments)
		if !ok {
			return nil, nil
		}
		return v, nil
	default:
		return nil, fmt.Errorf("expression: unknown root %q", n.root)
	}
}

func lookupMap(values map[string]any, segments []string) any {
	if values == nil {
		return nil
	}
	if len(segments) == 0 {
		return values
	}
	v, ok := pathutil.Get(values, segments)
	if !ok {
		return nil
	}
	return v
}

type tokenStream struct {
	tokens []token
	pos    int
}

func parseExpression(tokens []token) (exprNode, error) {
	stream := &tokenStream{tokens: tokens}
	node, err := parseOr(stream)
	if err != nil {
		return nil, err
	}
	if stream.pos < len(stream.tokens) {
		return nil, fmt.Errorf("expression: unexpected token %q", stream.tokens[stream.pos].raw)
	}
	return node, nil
}

func parseOr(stream *tokenStream) (exprNode, error) {
	left, err := parseAnd(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenOr) {
		right, err := parseAnd(stream)
		if err != nil {
			return nil, err
		}
		left = exprOr{left: left, right: right}
	}
	return left, nil
}

func parseAnd(stream *tokenStream) (exprNode, error) {
	left, err := parseUnary(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenAnd) {
		right, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		left = exprAnd{left: left, right: right}
	}
	return left, nil
}

func parseUnary(stream *tokenStream) (exprNode, error) {
	if stream.match(tokenNot) {
		inner, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		return exprNot{inner: inner}, nil
	}
	return parseComparison(stream)
}

func parseComparison(stream *tokenStream) (exprNode, error) {
	left, err := parsePrimary(stream)
	if err != nil {
		return nil, err
	}
	for _, op := range []tokenKind{tokenEq, tokenNeq} {
		if stream.match(op) {
			right, err := parsePrimary(stream)
			if err != nil {
				return nil, err
			}
			return exprCompare{left: left, op: op, right: right}, nil
		}
	}
	return left, nil
}

func parsePrimary(stream *tokenStream) (exprNode, error) {
	if stream.match(tokenLParen) {
		inner, err := parseOr(stream)
		if err != nil {
			return nil, err
		}
		if !stream.match(tokenRParen) {
			return nil, errors.New("expression: missing closing ')'")
		}
		return inner, nil
	}
	if stream.match(tokenNot) {
		inner, err := parsePrimary(stream)
		if err != nil {
			return nil, err
		}
		return exprNot{inner: inner}, nil
	}

	if stream.pos >= len(stream.tokens) {
		return nil, errors.New("expression: unexpected end of expression")
	}
	tok := stream.tokens[stream.pos]
	stream.pos++
	switch tok.kind {
	case tokenString:
		return exprLiteral{value: tok.raw}, nil
	case tokenNumber:
		f, err := strconv.ParseFloat(tok.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("expression: invalid number literal %q", tok.raw)
		}
		return exprLiteral{value: f}, nil
	case tokenBool:
		return exprLiteral{value: tok.raw == "true"}, nil
	case tokenNull:
		return exprLiteral{value: nil}, nil
	case tokenIdentifier:
		return parsePath(tok.raw)
	default:
		return nil, fmt.Errorf("expression: expected operand, got %q", tok.raw)
	}
}

func parsePath(raw string) (exprNode, error) {
	parts := strings.Split(raw, ".")
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("expression: malformed path %q", raw)
		}
	}
	switch parts[0] {
	case RootModel, RootFormState, RootField:
		return exprPath{root: parts[0], segments: parts[1:]}, nil
	default:
		return nil, fmt.Errorf("expression: unknown identifier %q (expected %s, %s or %s)", parts[0], RootModel, RootFormState, RootField)
	}
}

func (s *tokenStream) match(kind tokenKind) bool {
	if s.pos >= len(s.tokens) {
		return false
	}
	if s.tokens[s.pos].kind != kind {
		return false
	}
	s.pos++
	return true
}

// Truthy applies loose truthiness: nil, false, zero numbers and the empty
// string are false; everything else, including empty maps, is true.
func Truthy(value any) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0 && !math.IsNaN(v)
	case float32:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case int32:
		return v != 0
	case uint:
		return v != 0
	case uint64:
		return v != 0
	default:
		return true
	}
}

// LooseEqual compares two values with light coercion: when either side is a
// bool, number or string the other side is coerced to that kind first.
func LooseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if _, ok := a.(bool); ok {
		return coerceBool(a) == coerceBool(b)
	}
	if _, ok := b.(bool); ok {
		return coerceBool(a) == coerceBool(b)
	}
	if fa, okA := coerceNumber(a); okA {
		if fb, okB := coerceNumber(b); okB {
			return fa == fb
		}
	}
	_, aStr := a.(string)
	_, bStr := b.(string)
	if aStr || bStr {
		return coerceString(a) == coerceString(b)
	}
	return observe.Equal(a, b)
}

func coerceBool(value any) bool {
	if s, ok := value.(string); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return parsed
		}
	}
	return Truthy(value)
}

func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(value)
	}
}
