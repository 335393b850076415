package roleassign

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
)

func TestWorkflowClearsInputOnSuccess(t *testing.T) {
	w := NewWorkflow()
	out, err := w.Submit(context.Background(), Request{Lookup: "jane", Role: models.RoleAdmin},
		func(context.Context, Request) (string, error) { return "Jane Cruz is now admin.", nil })
	require.NoError(t, err)

	assert.True(t, out.OK)
	assert.Equal(t, "Jane Cruz is now admin.", out.Message)
	lookup, role := w.Input()
	assert.Empty(t, lookup)
	assert.Equal(t, models.RoleNone, role)
	assert.Equal(t, Idle, w.State())
}

func TestWorkflowRetainsInputOnFailure(t *testing.T) {
	w := NewWorkflow()
	out, err := w.Submit(context.Background(), Request{Lookup: "nobody", Role: models.RoleEditor},
		func(context.Context, Request) (string, error) { return "", models.ErrTargetNotFound })
	require.NoError(t, err)

	assert.False(t, out.OK)
	assert.ErrorIs(t, out.Reason, models.ErrTargetNotFound)
	assert.Equal(t, "No user found. Try entering their display name or user ID.", out.Message)
	lookup, role := w.Input()
	assert.Equal(t, "nobody", lookup)
	assert.Equal(t, models.RoleEditor, role)
	assert.Equal(t, Idle, w.State())
}

func TestWorkflowRejectsOverlappingSubmit(t *testing.T) {
	w := NewWorkflow()
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan Outcome)

	go func() {
		out, _ := w.Submit(context.Background(), Request{Lookup: "jane", Role: models.RoleAdmin},
			func(context.Context, Request) (string, error) {
				close(started)
				<-release
				return "ok", nil
			})
		done <- out
	}()
	<-started
	assert.Equal(t, Submitting, w.State())

	calls := 0
	_, err := w.Submit(context.Background(), Request{Lookup: "ed", Role: models.RoleEditor},
		func(context.Context, Request) (string, error) { calls++; return "", nil })
	assert.ErrorIs(t, err, models.ErrBusy)
	assert.Zero(t, calls)
	lookup, _ := w.Input()
	assert.Equal(t, "jane", lookup, "the running submission keeps its input")

	close(release)
	assert.True(t, (<-done).OK)
	assert.Equal(t, Idle, w.State())
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "Could not save the role. Only super admins can change roles.", FailureMessage(models.ErrForbidden))
	assert.Equal(t, "Could not save the role. Please try again.", FailureMessage(assert.AnError))
}
