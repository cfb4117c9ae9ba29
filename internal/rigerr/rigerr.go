// Package rigerr classifies the rig's recoverable failures. None of them is
// fatal: the frame loop reports and carries on with the previous visual state.
package rigerr

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	diag "github.com/coreman2200/funtimes-camrig/internal/diagnostics"
)

var (
	// ErrResourceUnavailable: asset, hardware or camera missing or failed to init.
	ErrResourceUnavailable = errors.New("resource unavailable")
	// ErrInvalidControl: input identifier or value outside the mapping.
	ErrInvalidControl = errors.New("invalid control")
	// ErrStateInconsistency: a prerequisite object does not exist.
	ErrStateInconsistency = errors.New("state inconsistency")
)

type Error struct {
	Kind  error
	Msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.cause}
}

// Cause satisfies errors.Cause from pkg/errors.
func (e *Error) Cause() error {
	if e.cause != nil {
		return e.cause
	}
	return e.Kind
}

func newErr(kind, cause error, format string, args ...any) error {
	e := &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
	if cause != nil {
		e.cause = errors.WithStack(cause)
	}
	return e
}

func Unavailable(cause error, format string, args ...any) error {
	return newErr(ErrResourceUnavailable, cause, format, args...)
}

func InvalidControl(format string, args ...any) error {
	return newErr(ErrInvalidControl, nil, format, args...)
}

func Inconsistent(format string, args ...any) error {
	return newErr(ErrStateInconsistency, nil, format, args...)
}

// Code returns the diagnostic code for err's kind.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrResourceUnavailable):
		return "RESOURCE.UNAVAILABLE"
	case errors.Is(err, ErrInvalidControl):
		return "CONTROL.INVALID"
	case errors.Is(err, ErrStateInconsistency):
		return "STATE.INCONSISTENT"
	default:
		return "INTERNAL"
	}
}

// Report logs err by kind and forwards it to sink. A nil err is ignored.
func Report(err error, sink diag.Sink) {
	if err == nil {
		return
	}
	code := Code(err)
	sev := diag.Warn
	if code == "INTERNAL" {
		sev = diag.Err
		log.Error().Err(err).Str("code", code).Msg("rig error")
	} else {
		log.Warn().Err(err).Str("code", code).Msg("rig degraded")
	}
	if sink == nil {
		return
	}
	d := diag.Diagnostic{
		Severity:       sev,
		Code:           code,
		Summary:        summary(code),
		Detail:         err.Error(),
		LikelyCauses:   likelyCauses[code],
		SuggestedFixes: suggestedFixes[code],
	}
	var e *Error
	if errors.As(err, &e) && e.cause != nil {
		d.Evidence = map[string]any{"cause": errors.Cause(e.cause).Error()}
	}
	sink.Push(d)
}

var likelyCauses = map[string][]string{
	"RESOURCE.UNAVAILABLE": {"asset path missing or unreadable", "device unplugged or busy", "file is corrupt or truncated"},
	"CONTROL.INVALID":      {"control id outside the pad map", "value outside the control's range"},
	"STATE.INCONSISTENT":   {"the effect being adjusted is not active", "no model loaded yet"},
}

var suggestedFixes = map[string][]string{
	"RESOURCE.UNAVAILABLE": {"check asset_dir and the paths in config.yaml", "reconnect the device and reload"},
	"CONTROL.INVALID":      {"check the surface layout matches the pad map"},
	"STATE.INCONSISTENT":   {"select the matching filter first", "wait for the model to finish loading"},
}

func summary(code string) string {
	switch code {
	case "RESOURCE.UNAVAILABLE":
		return "Resource unavailable; feature inactive"
	case "CONTROL.INVALID":
		return "Control ignored"
	case "STATE.INCONSISTENT":
		return "Adjustment skipped"
	}
	return "Unexpected error"
}
