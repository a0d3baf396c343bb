package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/campus-safety/kestrel/internal/domain"
)

// TriggerSet holds the compiled applicability predicates for the
// cross-cutting catalogue tags. Predicates are CEL expressions over the
// query context, compiled once at startup and evaluated per assessment.
type TriggerSet struct {
	programs map[string]cel.Program
}

// Default tag predicates. The night window matches the recommendation
// blending policy: 18:00 through 05:00.
var defaultTriggers = map[string]string{
	domain.TagNight:   "hour >= 18 || hour <= 5",
	domain.TagWeekend: "is_weekend",
}

// NewTriggerSet compiles the default tag predicates.
func NewTriggerSet() (*TriggerSet, error) {
	env, err := cel.NewEnv(
		cel.Variable("hour", cel.IntType),
		cel.Variable("is_weekend", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	programs := make(map[string]cel.Program, len(defaultTriggers))
	for tag, expr := range defaultTriggers {
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("failed to compile trigger %s: %w", tag, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("failed to build trigger program %s: %w", tag, err)
		}
		programs[tag] = prg
	}

	return &TriggerSet{programs: programs}, nil
}

// Fires evaluates a tag's predicate against a query context. Unknown tags
// and evaluation errors report false.
func (t *TriggerSet) Fires(tag string, hour int, isWeekend bool) bool {
	prg, ok := t.programs[tag]
	if !ok {
		return false
	}

	out, _, err := prg.Eval(map[string]any{
		"hour":       int64(hour),
		"is_weekend": isWeekend,
	})
	if err != nil {
		return false
	}

	b, ok := out.(types.Bool)
	return ok && bool(b)
}
