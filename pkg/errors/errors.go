package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies a rejection returned by a delivery sink
type Kind string

const (
	KindRateLimited  Kind = "rate_limited"
	KindUnauthorized Kind = "unauthorized"
	KindPermission   Kind = "permission"
	KindNetwork      Kind = "network"
	KindServer       Kind = "server_error"
	KindUnknown      Kind = "unknown"
)

var (
	// ErrAnchorUnresolvable is returned when the author of the anchor item cannot be determined.
	ErrAnchorUnresolvable = stderrors.New("anchor author unresolvable")
	// ErrThrottleExhausted is returned once a request has been throttled more times than the queue allows.
	ErrThrottleExhausted = stderrors.New("throttle retries exhausted")
)

// Rejection is an error reported by a remote endpoint
type Rejection struct {
	Kind       Kind
	Message    string
	Code       int    // HTTP status, 0 for transport failures
	APICode    string // machine readable code from the response body
	RetryAfter time.Duration
}

func (e *Rejection) Error() string {
	if e.APICode != "" {
		return fmt.Sprintf("%s error (code %d, %s): %s", e.Kind, e.Code, e.APICode, e.Message)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Kind, e.Code, e.Message)
}

// IsRetryable reports whether the transport layer may retry a request that failed with this kind.
// Rate limits are not retried here; they are handed back to the request queue.
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindNetwork, KindServer:
		return true
	default:
		return false
	}
}

// KindForStatus maps an HTTP status and an optional API error code to a Kind.
// The API code wins when both are present.
func KindForStatus(statusCode int, apiCode string) Kind {
	switch apiCode {
	case "rate_limited":
		return KindRateLimited
	case "unauthorized":
		return KindUnauthorized
	case "restricted_resource":
		return KindPermission
	}

	switch {
	case statusCode == 0:
		return KindNetwork
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case statusCode == http.StatusUnauthorized:
		return KindUnauthorized
	case statusCode == http.StatusForbidden:
		return KindPermission
	case statusCode >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

// KindOf returns the kind of a rejection anywhere in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var rej *Rejection
	if stderrors.As(err, &rej) {
		return rej.Kind
	}
	return KindUnknown
}

// DirectiveKind tells the request queue what to do with a failed request
type DirectiveKind int

const (
	DirectiveFatal DirectiveKind = iota
	DirectiveRateLimited
)

func (k DirectiveKind) String() string {
	if k == DirectiveRateLimited {
		return "rate_limited"
	}
	return "fatal"
}

// RetryDirective is derived from a sink failure
type RetryDirective struct {
	Kind          DirectiveKind
	RetryAfter    time.Duration
	HasRetryAfter bool
}

// DirectiveFor derives the retry directive for err. Only rate-limit rejections are retried;
// every other failure, including a nil-kind error, is fatal to its request.
func DirectiveFor(err error) RetryDirective {
	var rej *Rejection
	if !stderrors.As(err, &rej) || rej.Kind != KindRateLimited {
		return RetryDirective{Kind: DirectiveFatal}
	}
	return RetryDirective{
		Kind:          DirectiveRateLimited,
		RetryAfter:    rej.RetryAfter,
		HasRetryAfter: rej.RetryAfter > 0,
	}
}

// ExhaustedError describes why a thread walk stopped early. The collected items are still valid.
type ExhaustedError struct {
	Reason string
}

func (e *ExhaustedError) Error() string {
	return "thread walk exhausted: " + e.Reason
}

// IsExhausted reports whether err is an ExhaustedError
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return stderrors.As(err, &ex)
}
