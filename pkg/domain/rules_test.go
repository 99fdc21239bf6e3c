package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultMergeAndBlocking(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}})
	assert.False(t, result.HasBlocking())

	result.Merge(Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock, Message: "nope"}}})
	assert.True(t, result.HasBlocking())

	err := RuleViolationError{Result: result}
	assert.Equal(t, "transaction blocked by rules: block: nope", err.Error())
	assert.Equal(t, "transaction blocked by rules", RuleViolationError{}.Error())

	result.Add(Violation{Rule: "quota", Severity: SeverityBlock, Message: "full"})
	assert.Equal(t, "transaction blocked by rules: block: nope; quota: full", RuleViolationError{Result: result}.Error())
	require.Len(t, result.Warnings(), 1)
	assert.Equal(t, "warn", result.Warnings()[0].Rule)
	assert.Len(t, result.Blocking(), 2)
}

func TestResultMergeEmptyInput(t *testing.T) {
	original := Result{Violations: []Violation{{Rule: "existing", Severity: SeverityWarn}}}
	original.Merge(Result{})
	require.Len(t, original.Violations, 1)
	assert.Equal(t, "existing", original.Violations[0].Rule)
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine(staticRule{"first"})
	engine.Register(staticRule{"second"}, RuleFunc{RuleName: "third", Fn: func(_ context.Context, _ RuleView, changes []Change) (Result, error) {
		var res Result
		for _, c := range changes {
			res.Add(Violation{Rule: "third", Severity: SeverityBlock, Entity: c.Entity})
		}
		return res, nil
	}})
	assert.Equal(t, []string{"first", "second", "third"}, engine.Names())

	res, err := engine.Evaluate(context.Background(), nil, []Change{{Entity: EntityUnit, Action: ActionCreate}})
	require.NoError(t, err)
	require.Len(t, res.Violations, 3)
	assert.Equal(t, "second", res.Violations[1].Rule)
	assert.Equal(t, EntityUnit, res.Violations[2].Entity)
	assert.True(t, res.HasBlocking())
}

func TestRulesEngineEvaluateError(t *testing.T) {
	engine := NewRulesEngine(errorRule{})
	_, err := engine.Evaluate(context.Background(), nil, nil)
	require.EqualError(t, err, "rule error: boom")
}

func TestChangeSubject(t *testing.T) {
	u := Unit{Number: "1"}
	assert.Equal(t, u, Change{After: u}.Subject())
	assert.Equal(t, u, Change{Before: u}.Subject())
}

func TestScopedHelpers(t *testing.T) {
	table := unitTable{
		{Base: Base{ID: "u1"}, OrganizationID: "org-1"},
		{Base: Base{ID: "u2"}, OrganizationID: "org-2"},
	}
	scope := Scope{OrganizationID: "org-1", Role: RoleOwner}
	got := ScopedList[Unit](table, scope)
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].ID)

	_, ok := ScopedGet[Unit](table, scope, "u2")
	assert.False(t, ok)
	u, ok := ScopedGet[Unit](table, scope, "u1")
	assert.True(t, ok)
	assert.Equal(t, "org-1", u.OrganizationID)
}

type unitTable []Unit

func (s unitTable) Get(id string) (Unit, bool) {
	for _, rec := range s {
		if rec.ID == id {
			return rec, true
		}
	}
	return Unit{}, false
}

func (s unitTable) List() []Unit { return append([]Unit(nil), s...) }

type staticRule struct{ name string }

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarn}}}, nil
}

type errorRule struct{}

func (errorRule) Name() string { return "error" }

func (errorRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	return Result{}, errors.New("boom")
}
