package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorAccumulates(t *testing.T) {
	var ve ValidationError
	require.True(t, ve.Empty())

	ve.Add("unknown cube %q", "Foo")
	ve.Add("unknown field %q on cube %q", "bar", "Baz")

	require.False(t, ve.Empty())
	assert.Len(t, ve.Errors, 2)
	assert.Contains(t, ve.Error(), "2 errors")
	assert.Contains(t, ve.Error(), "Foo")
	assert.Contains(t, ve.Error(), "Baz")
}

func TestExecutionErrorMessage(t *testing.T) {
	cause := errors.New("connection reset")
	ee := &ExecutionError{Cause: cause, Code: "08006", Detail: "server closed", Hint: "retry"}

	msg := ee.Error()
	assert.Contains(t, msg, "connection reset")
	assert.Contains(t, msg, "08006")
	assert.Contains(t, msg, "server closed")
	assert.Contains(t, msg, "retry")
	assert.Equal(t, cause, errors.Unwrap(ee))
}

func TestCacheErrorNeverNeedsToPropagateButIsTyped(t *testing.T) {
	cause := errors.New("timeout")
	ce := &CacheError{Op: "set", Cause: cause}

	var target *CacheError
	require.True(t, errors.As(error(ce), &target))
	assert.Equal(t, "set", target.Op)
}

func TestPlanErrorMessage(t *testing.T) {
	pe := &PlanError{From: "Employees", To: "Invoices", Reason: "no join edge"}
	assert.Contains(t, pe.Error(), "Employees")
	assert.Contains(t, pe.Error(), "Invoices")
}

func TestCubeDefinitionErrorMessage(t *testing.T) {
	cde := &CubeDefinitionError{Cube: "Employees", Measure: "activePercentage", Reason: "circular reference"}
	assert.Contains(t, cde.Error(), "Employees")
	assert.Contains(t, cde.Error(), "activePercentage")
	assert.Contains(t, cde.Error(), "circular")
}
