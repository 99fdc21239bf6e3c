package domain

import (
	"context"
	"fmt"
	"strings"
)

// Severity decides whether a violation stops the commit.
type Severity string

const (
	// SeverityBlock aborts the transaction.
	SeverityBlock Severity = "block"
	// SeverityWarn commits and reports the violation to the caller.
	SeverityWarn Severity = "warn"
)

// Action is the kind of mutation a Change records.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change is one mutation recorded inside a transaction. Before is nil for
// creates and After is nil for deletes.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Subject returns the record carried by the change, preferring the post image.
func (c Change) Subject() any {
	if c.After != nil {
		return c.After
	}
	return c.Before
}

// Violation is a single rule finding against one record.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity"`
	EntityID string     `json:"entity_id,omitempty"`
}

func (v Violation) String() string { return v.Rule + ": " + v.Message }

// Result collects the violations of one evaluation.
type Result struct {
	Violations []Violation
}

// Add records a violation.
func (r *Result) Add(v Violation) { r.Violations = append(r.Violations, v) }

// Merge appends the violations of other.
func (r *Result) Merge(other Result) {
	r.Violations = append(r.Violations, other.Violations...)
}

func (r Result) bySeverity(sev Severity) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == sev {
			out = append(out, v)
		}
	}
	return out
}

// Warnings returns the non-blocking violations in evaluation order.
func (r Result) Warnings() []Violation { return r.bySeverity(SeverityWarn) }

// Blocking returns the violations that abort a commit.
func (r Result) Blocking() []Violation { return r.bySeverity(SeverityBlock) }

// HasBlocking reports whether the commit must be aborted.
func (r Result) HasBlocking() bool { return len(r.Blocking()) > 0 }

// RuleViolationError aborts a transaction and carries the full result.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	blocking := e.Result.Blocking()
	if len(blocking) == 0 {
		return "transaction blocked by rules"
	}
	parts := make([]string, len(blocking))
	for i, v := range blocking {
		parts[i] = v.String()
	}
	return "transaction blocked by rules: " + strings.Join(parts, "; ")
}

// RuleView is the read-only state a rule sees: the transaction's pending state.
type RuleView = TransactionView

// Rule inspects the pending state and the changes of a transaction.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RuleFunc adapts a function to Rule.
type RuleFunc struct {
	RuleName string
	Fn       func(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

func (f RuleFunc) Name() string { return f.RuleName }

func (f RuleFunc) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	return f.Fn(ctx, view, changes)
}

// RulesEngine runs registered rules in registration order.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine returns an engine with the given rules.
func NewRulesEngine(rules ...Rule) *RulesEngine {
	return &RulesEngine{rules: rules}
}

// Register appends rules.
func (e *RulesEngine) Register(rules ...Rule) {
	e.rules = append(e.rules, rules...)
}

// Names lists the registered rules.
func (e *RulesEngine) Names() []string {
	out := make([]string, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Name()
	}
	return out
}

// Evaluate runs every rule and merges the results. The first rule error
// aborts evaluation.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		combined.Merge(res)
	}
	return combined, nil
}
