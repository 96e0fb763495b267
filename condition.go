package persist

import (
	"fmt"
	"strings"
	"time"
)

// shouldPersist evaluates the strategy condition. An empty condition always
// passes.
func (p *Plugin) shouldPersist(strategy Strategy, ctx RuleContext) (bool, error) {
	expr := strings.TrimSpace(strategy.When)
	if expr == "" {
		return true, nil
	}
	evaluator, err := p.resolveEvaluator()
	if err != nil {
		return false, err
	}

	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx.withDefaults(), expr)
	if evalErr == nil {
		if _, ok := value.(bool); !ok {
			evalErr = fmt.Errorf("condition must evaluate to bool, got %T", value)
		}
	}
	evalErr = wrapEvaluationError(engine, expr, ctx.label(), evalErr)
	p.logger.Log(LogEvent{
		Op:       OpEvaluate,
		StoreID:  ctx.StoreID,
		Key:      ctx.Key,
		Version:  ctx.Version,
		Engine:   engine,
		Expr:     expr,
		Duration: time.Since(start),
		Err:      evalErr,
	})
	if evalErr != nil {
		return false, evalErr
	}
	return value.(bool), nil
}

func (p *Plugin) resolveEvaluator() (Evaluator, error) {
	p.evaluatorOnce.Do(func() {
		if p.cfg.evaluator != nil {
			p.evaluator = p.cfg.evaluator
			return
		}
		var exprOpts []ExprEvaluatorOption
		if p.cfg.programCache != nil {
			exprOpts = append(exprOpts, ExprWithProgramCache(p.cfg.programCache))
		}
		if p.cfg.functions != nil {
			exprOpts = append(exprOpts, ExprWithFunctionRegistry(p.cfg.functions))
		}
		p.evaluator = NewExprEvaluator(exprOpts...)
	})
	if p.evaluator == nil {
		return nil, ErrNoEvaluator
	}
	return p.evaluator, nil
}

type namedEvaluator interface {
	engineName() string
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	if named, ok := e.(namedEvaluator); ok {
		return named.engineName()
	}
	return "custom"
}
