// Package permission decides whether the user has granted access to the
// media library. A Gate queries and requests access for one library; Ensure
// runs the request flow on top of it.
package permission

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Status is the outcome of a permission query or request.
type Status string

const (
	StatusGranted           Status = "granted"
	StatusDenied            Status = "denied"
	StatusUndetermined      Status = "undetermined"
	StatusDeniedPermanently Status = "deniedPermanently"
	StatusError             Status = "error"
)

// State is what a Gate reports before anything is requested.
type State struct {
	Status Status
	// CanAskAgain is false once asking the user can no longer change the answer.
	CanAskAgain bool
}

// Gate guards access to one library.
type Gate interface {
	Query(ctx context.Context) (State, error)
	Request(ctx context.Context) (Status, error)
	// OpenSettings sends the user to wherever access can be changed.
	OpenSettings(ctx context.Context) error
}

// Instructor is implemented by gates that can explain how to grant access by
// hand.
type Instructor interface {
	ManualInstructions() string
}

// Result is the outcome of Ensure.
type Result struct {
	Status  Status
	Granted bool
	Err     error
}

// Ensure queries the gate and, if the user can still be asked, requests
// access. It never panics; any failure is reported as StatusError.
func Ensure(ctx context.Context, gate Gate) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{Status: StatusError, Err: fmt.Errorf("permission gate panicked: %v", p)}
			log.Error().Err(res.Err).Msg("Permission check failed")
		}
	}()

	state, err := gate.Query(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Permission query failed")
		return Result{Status: StatusError, Err: err}
	}
	log.Debug().Str("status", string(state.Status)).Bool("can_ask_again", state.CanAskAgain).Msg("Permission state")

	if state.Status == StatusGranted {
		return Result{Status: StatusGranted, Granted: true}
	}
	if !state.CanAskAgain && state.Status != StatusUndetermined {
		return Result{Status: StatusDeniedPermanently}
	}

	status, err := gate.Request(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Permission request failed")
		return Result{Status: StatusError, Err: err}
	}
	log.Info().Str("status", string(status)).Msg("Permission requested")
	return Result{Status: status, Granted: status == StatusGranted}
}

const genericInstructions = "Grant gallery-sweep access to your media library and try again."

// OpenSettings tries gate.OpenSettings and returns manual instructions when
// that fails. An empty string means the settings were opened.
func OpenSettings(ctx context.Context, gate Gate) string {
	err := gate.OpenSettings(ctx)
	if err == nil {
		return ""
	}
	log.Warn().Err(err).Msg("Could not open settings, showing manual instructions")
	if in, ok := gate.(Instructor); ok {
		return in.ManualInstructions()
	}
	return genericInstructions
}
