// Package corekit holds the small set of types shared across every
// cognition-loop component: the closed error-kind enum, the typed error that
// carries it, and the canonical-encoding digest used for content addressing
// and decision hashing.
package corekit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ErrorKind is the closed set of error kinds a component may report.
// Semantics are fixed; callers branch on Kind rather than parsing strings.
type ErrorKind string

const (
	ErrNotFound       ErrorKind = "not_found"
	ErrAlreadyExists  ErrorKind = "already_exists"
	ErrStageTimeout   ErrorKind = "stage_timeout"
	ErrAdapterError   ErrorKind = "adapter_error"
	ErrConsentTimeout ErrorKind = "consent_timeout"
	ErrOverloaded     ErrorKind = "overloaded"
	ErrCancelled      ErrorKind = "cancelled"
	ErrConfigInvalid  ErrorKind = "config_invalid"
)

// CoreError is the typed error attached to every failure the pipeline
// reports. Stage identifies which component or pipeline stage produced it,
// empty when not applicable.
type CoreError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *CoreError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s (stage=%s): %v", e.Kind, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CoreError) Unwrap() error { return e.Err }

// NewError builds a CoreError wrapping err with the given kind and stage.
func NewError(kind ErrorKind, stage string, err error) *CoreError {
	return &CoreError{Kind: kind, Stage: stage, Err: err}
}

// KindOf extracts the ErrorKind from err if it is (or wraps) a *CoreError.
// Returns ("", false) otherwise.
func KindOf(err error) (ErrorKind, bool) {
	var ce *CoreError
	if ok := asCoreError(err, &ce); ok {
		return ce.Kind, true
	}
	return "", false
}

func asCoreError(err error, target **CoreError) bool {
	for err != nil {
		if ce, ok := err.(*CoreError); ok {
			*target = ce
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

// CanonicalDigest returns the lowercase hex sha256 digest of v's canonical
// JSON encoding. Used as the content address for memory shards and as the
// decision hash for harmonizer/consent outcomes. Map keys are encoded in
// sorted order by encoding/json already; field order for structs is fixed
// by their Go declaration, which keeps the encoding stable across calls.
func CanonicalDigest(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("corekit.CanonicalDigest: marshal: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Clamp restricts x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
