// Package policy evaluates an optional deployment-supplied rego policy over
// capture metadata before an upload is accepted. With no policy configured
// every capture is allowed.
package policy

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/open-policy-agent/opa/rego"

	"picproof/internal/domain"
)

const defaultQuery = "data.picproof.capture.result"

// Engine holds a prepared rego query. The policy module is expected to
// produce a result document of the form {"allow": bool, "deny": [...]}.
type Engine struct {
	query rego.PreparedEvalQuery
}

func NewEngineFromPath(ctx context.Context, policyPath string) (*Engine, error) {
	prepared, err := rego.New(
		rego.Query(defaultQuery),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{policyPath}, nil),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{query: prepared}, nil
}

func (e *Engine) Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyResult, error) {
	if e == nil {
		return domain.PolicyResult{Allow: true}, nil
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.PolicyResult{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.PolicyResult{}, errors.New("empty policy result")
	}
	return decodeResult(results[0].Expressions[0].Value)
}

func decodeResult(value any) (domain.PolicyResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return domain.PolicyResult{}, err
	}
	var result domain.PolicyResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.PolicyResult{}, err
	}
	return result, nil
}
