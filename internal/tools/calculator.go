package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// CalculatorInput describes the calculate tool's arguments.
type CalculatorInput struct {
	Expression string `json:"expression" jsonschema_description:"Mathematical expression to evaluate, e.g. '2 + 2 * 3' or 'sqrt(16) + pi'."`
	Precision  int    `json:"precision,omitempty" jsonschema_description:"Number of decimal places in the result (default 6)."`
}

var calculatorSchema = GenerateSchema[CalculatorInput]()

// Calculator evaluates arithmetic expressions with common math functions
// and constants.
type Calculator struct{}

// NewCalculator creates the calculate tool.
func NewCalculator() *Calculator {
	return &Calculator{}
}

func (c *Calculator) Name() string {
	return "calculate"
}

func (c *Calculator) Description() string {
	return "Perform mathematical calculations including basic arithmetic, trigonometry, logarithms, and more."
}

func (c *Calculator) InputSchema() json.RawMessage {
	return calculatorSchema
}

func (c *Calculator) RequiredParameters() []string {
	return []string{"expression"}
}

// Invoke evaluates the expression and formats the result to the requested
// precision with trailing zeros removed.
func (c *Calculator) Invoke(ctx context.Context, args map[string]any) (string, error) {
	expression, err := stringArg(args, "expression")
	if err != nil {
		return "", err
	}
	precision, err := intArg(args, "precision", 6)
	if err != nil {
		return "", err
	}
	if precision < 0 || precision > 15 {
		return "", fmt.Errorf("precision must be between 0 and 15")
	}

	value, err := evaluateExpression(expression)
	if err != nil {
		return "", err
	}

	return "Result: " + formatResult(value, precision), nil
}

// formatResult renders integral values bare and fractional values to the
// given precision, trimming trailing zeros.
func formatResult(value float64, precision int) string {
	if value == math.Trunc(value) && math.Abs(value) < 1e15 {
		return strconv.FormatFloat(value, 'f', 0, 64)
	}
	s := strconv.FormatFloat(value, 'f', precision, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}

// Accepts digits, letters (functions and constants), whitespace, decimal
// points, operators, and parentheses.
var expressionPattern = regexp.MustCompile(`^[0-9a-z\s\+\-\*/%\^\(\)\.,]+$`)

var mathConstants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

var mathFunctions = map[string]func(float64) float64{
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"asin":  math.Asin,
	"acos":  math.Acos,
	"atan":  math.Atan,
	"sinh":  math.Sinh,
	"cosh":  math.Cosh,
	"tanh":  math.Tanh,
	"sqrt":  math.Sqrt,
	"log":   math.Log,
	"log10": math.Log10,
	"exp":   math.Exp,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"abs":   math.Abs,
}

// normalizeExpression lowercases the input and rewrites unicode operators
// and Python-style power so the parser only sees ASCII.
func normalizeExpression(expr string) string {
	expr = strings.ToLower(strings.TrimSpace(expr))
	expr = strings.ReplaceAll(expr, "×", "*")
	expr = strings.ReplaceAll(expr, "÷", "/")
	expr = strings.ReplaceAll(expr, "**", "^")
	return expr
}

func evaluateExpression(raw string) (float64, error) {
	expr := normalizeExpression(raw)
	if expr == "" {
		return 0, fmt.Errorf("expression is empty")
	}
	if !expressionPattern.MatchString(expr) {
		return 0, fmt.Errorf("expression contains invalid characters")
	}

	balance := 0
	for _, ch := range expr {
		switch ch {
		case '(':
			balance++
		case ')':
			balance--
			if balance < 0 {
				return 0, fmt.Errorf("expression has unbalanced parentheses")
			}
		}
	}
	if balance != 0 {
		return 0, fmt.Errorf("expression has unbalanced parentheses")
	}

	p := &exprParser{input: expr}
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.hasNext() {
		return 0, fmt.Errorf("unexpected token at position %d", p.pos)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("expression result is not a finite number")
	}
	return value, nil
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}

	for {
		p.skipSpaces()
		switch {
		case p.match('+'):
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case p.match('-'):
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parsePower()
	if err != nil {
		return 0, err
	}

	for {
		p.skipSpaces()
		switch {
		case p.match('*'):
			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			left *= right
		case p.match('/'):
			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero is not allowed")
			}
			left /= right
		case p.match('%'):
			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("modulo by zero is not allowed")
			}
			left = math.Mod(left, right)
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parsePower() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}

	p.skipSpaces()
	if p.match('^') {
		// Right-associative: 2^3^2 is 2^(3^2).
		right, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		return math.Pow(left, right), nil
	}
	return left, nil
}

func (p *exprParser) parseUnary() (float64, error) {
	p.skipSpaces()
	if p.match('+') {
		return p.parseUnary()
	}
	if p.match('-') {
		value, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -value, nil
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (float64, error) {
	p.skipSpaces()
	if p.match('(') {
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpaces()
		if !p.match(')') {
			return 0, fmt.Errorf("missing closing parenthesis at position %d", p.pos)
		}
		return value, nil
	}
	if p.hasNext() && isLetter(p.peek()) {
		return p.parseIdentifier()
	}
	return p.parseNumber()
}

// parseIdentifier handles function calls and named constants.
func (p *exprParser) parseIdentifier() (float64, error) {
	start := p.pos
	for p.hasNext() && (isLetter(p.peek()) || isDigit(p.peek())) {
		p.pos++
	}
	name := p.input[start:p.pos]

	p.skipSpaces()
	if p.match('(') {
		fn, ok := mathFunctions[name]
		if !ok {
			return 0, fmt.Errorf("unknown function %q", name)
		}
		arg, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpaces()
		if !p.match(')') {
			return 0, fmt.Errorf("missing closing parenthesis at position %d", p.pos)
		}
		return fn(arg), nil
	}

	if value, ok := mathConstants[name]; ok {
		return value, nil
	}
	return 0, fmt.Errorf("unknown constant %q", name)
}

func (p *exprParser) parseNumber() (float64, error) {
	p.skipSpaces()
	start := p.pos
	hasDigit := false
	hasDot := false

	for p.hasNext() {
		ch := p.peek()
		switch {
		case isDigit(ch):
			hasDigit = true
			p.pos++
		case ch == '.':
			if hasDot {
				return 0, fmt.Errorf("invalid number format at position %d", p.pos)
			}
			hasDot = true
			p.pos++
		default:
			goto done
		}
	}

done:
	if !hasDigit {
		return 0, fmt.Errorf("expected number at position %d", start)
	}

	raw := p.input[start:p.pos]
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", raw, err)
	}
	return value, nil
}

func (p *exprParser) skipSpaces() {
	for p.hasNext() && p.peek() == ' ' {
		p.pos++
	}
}

func (p *exprParser) hasNext() bool {
	return p.pos < len(p.input)
}

func (p *exprParser) peek() byte {
	return p.input[p.pos]
}

func (p *exprParser) match(expected byte) bool {
	if p.hasNext() && p.peek() == expected {
		p.pos++
		return true
	}
	return false
}

func isLetter(ch byte) bool {
	return ch >= 'a' && ch <= 'z'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
