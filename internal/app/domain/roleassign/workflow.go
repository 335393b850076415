package roleassign

import (
	"context"
	"errors"
	"sync"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
)

type State int

const (
	Idle State = iota
	Submitting
)

func (s State) String() string {
	if s == Submitting {
		return "submitting"
	}
	return "idle"
}

// Outcome is how the last submission ended. Failed outcomes keep the reason.
type Outcome struct {
	OK      bool
	Reason  error
	Message string
}

const notFoundMessage = "No user found. Try entering their display name or user ID."

// Workflow is the per browser session form state:
// Idle -> Submitting -> Idle, clearing the input on success and keeping it on failure.
type Workflow struct {
	mu     sync.Mutex
	state  State
	lookup string
	role   models.Role
}

func NewWorkflow() *Workflow {
	return &Workflow{}
}

// Submit runs fn for req unless a submission is already running, in which
// case it fails with models.ErrBusy without touching the input.
func (w *Workflow) Submit(ctx context.Context, req Request, fn func(context.Context, Request) (string, error)) (Outcome, error) {
	w.mu.Lock()
	if w.state == Submitting {
		w.mu.Unlock()
		return Outcome{}, models.ErrBusy
	}
	w.state = Submitting
	w.lookup, w.role = req.Lookup, req.Role
	w.mu.Unlock()

	msg, err := fn(ctx, req)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = Idle
	if err != nil {
		return Outcome{Reason: err, Message: FailureMessage(err)}, nil
	}
	w.lookup, w.role = "", models.RoleNone
	return Outcome{OK: true, Message: msg}, nil
}

// Input returns the retained lookup and role.
func (w *Workflow) Input() (string, models.Role) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lookup, w.role
}

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// FailureMessage is the operator facing text for a failed submission.
func FailureMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrTargetNotFound):
		return notFoundMessage
	case errors.Is(err, models.ErrValidation):
		return "Enter a display name or user ID and choose a role."
	case errors.Is(err, models.ErrForbidden):
		return "Could not save the role. Only super admins can change roles."
	case errors.Is(err, models.ErrNotFound):
		return "That role no longer exists."
	case errors.Is(err, models.ErrBusy):
		return "A submission is already in progress."
	default:
		return "Could not save the role. Please try again."
	}
}
