// Package condition evaluates the declarative comparisons attached to
// condition nodes. Evaluation is fail-closed: any malformed operator or
// operand yields false together with a recoverable error, never a panic and
// never a failed branch.
package condition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/template"
)

// EvaluationError is the recoverable error attached to a node's output when
// a condition could not be evaluated. The condition result is false in
// every such case.
type EvaluationError struct {
	Reason string
}

func (e *EvaluationError) Error() string {
	return "condition evaluation error: " + e.Reason
}

// Evaluate resolves the condition's operands against the execution context
// and applies the configured comparison. A non-nil error is always
// recoverable and always paired with a false result.
func Evaluate(config *models.ConditionConfig, executionCtx *models.ExecutionContext) (bool, error) {
	switch config.Language {
	case "", models.ConditionLanguageSimple:
		return evaluateSimple(config, executionCtx)
	case models.ConditionLanguageExpression:
		return evaluateExpression(config.Expression, executionCtx)
	default:
		return false, &EvaluationError{Reason: fmt.Sprintf("unknown language %q", config.Language)}
	}
}

func evaluateSimple(config *models.ConditionConfig, executionCtx *models.ExecutionContext) (bool, error) {
	field, _ := template.Resolve(config.Field, executionCtx)
	value, _ := template.Resolve(config.Value, executionCtx)

	switch config.Operator {
	case models.OperatorEquals:
		return field == value, nil
	case models.OperatorNotEquals:
		return field != value, nil
	case models.OperatorContains:
		return strings.Contains(field, value), nil
	case models.OperatorGreaterThan, models.OperatorLessThan:
		left, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return false, &EvaluationError{Reason: fmt.Sprintf("left operand %q is not numeric", field)}
		}

		right, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return false, &EvaluationError{Reason: fmt.Sprintf("right operand %q is not numeric", value)}
		}

		if config.Operator == models.OperatorGreaterThan {
			return left > right, nil
		}

		return left < right, nil
	default:
		return false, &EvaluationError{Reason: fmt.Sprintf("unknown operator %q", config.Operator)}
	}
}

// evaluateExpression runs the expression language over the execution
// context. Node ids are top-level variables; undefined paths evaluate to
// nil instead of failing the compile.
func evaluateExpression(expression string, executionCtx *models.ExecutionContext) (bool, error) {
	env := make(map[string]any)
	for id, output := range executionCtx.Snapshot() {
		env[id] = output
	}

	program, err := expr.Compile(expression,
		expr.Env(env),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return false, &EvaluationError{Reason: fmt.Sprintf("compile %q: %v", expression, err)}
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return false, &EvaluationError{Reason: fmt.Sprintf("run %q: %v", expression, err)}
	}

	value, ok := result.(bool)
	if !ok {
		return false, &EvaluationError{Reason: fmt.Sprintf("expression %q did not produce a boolean", expression)}
	}

	return value, nil
}
