package entity

import (
	"errors"
	"fmt"
)

// ErrorKind classifies acquisition failures. Kinds are usable as errors.Is
// targets for any *FetchError carrying them.
type ErrorKind string

const (
	KindTransport        ErrorKind = "transport_failure"
	KindReject           ErrorKind = "classification_reject"
	KindProvider         ErrorKind = "provider_error"
	KindUnexpectedShape  ErrorKind = "unexpected_shape"
	KindExhaustedTiers   ErrorKind = "exhausted_tiers"
	KindPermanentMissing ErrorKind = "permanent_not_found"
)

func (k ErrorKind) Error() string {
	return string(k)
}

// Terminal reports whether the kind ends a domain's processing
func (k ErrorKind) Terminal() bool {
	return k == KindExhaustedTiers || k == KindPermanentMissing
}

// ErrAlreadyAcquired is returned by the asset store when a domain already has an asset
var ErrAlreadyAcquired = errors.New("asset already acquired")

// FetchError describes a failed attempt within one tier
type FetchError struct {
	Kind ErrorKind
	Tier Tier
	URL  string
	Err  error
}

// NewFetchError creates a fetch error
func NewFetchError(kind ErrorKind, tier Tier, url string, err error) *FetchError {
	return &FetchError{Kind: kind, Tier: tier, URL: url, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Tier, e.URL, e.Kind)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Tier, e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches against an ErrorKind
func (e *FetchError) Is(target error) bool {
	kind, ok := target.(ErrorKind)
	return ok && kind == e.Kind
}

// KindOf extracts the error kind, defaulting to a transport failure
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var kind ErrorKind
	if errors.As(err, &kind) {
		return kind
	}
	return KindTransport
}
