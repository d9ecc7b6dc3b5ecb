package gameparams

import (
	"errors"
	"strings"

	"github.com/Knetic/govaluate"
)

// CompileRule parses a boolean rule expression. An empty rule compiles to nil.
func CompileRule(rule string) (*govaluate.EvaluableExpression, error) {
	r := strings.TrimSpace(rule)
	if r == "" {
		return nil, nil
	}
	return govaluate.NewEvaluableExpression(r)
}

// EvaluateRule evaluates a compiled rule against params. A nil rule is false.
func EvaluateRule(expr *govaluate.EvaluableExpression, params map[string]interface{}) (bool, error) {
	if expr == nil {
		return false, nil
	}
	result, err := expr.Evaluate(params)
	if err != nil {
		return false, err
	}
	switch v := result.(type) {
	case bool:
		return v, nil
	default:
		return false, errors.New("rule did not evaluate to boolean")
	}
}
