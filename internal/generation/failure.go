package generation

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FailureKind is the classification of a failed provider call.
type FailureKind int

// Failure kinds. The zero value is fatal so that an unclassified failure never retries.
const (
	FailureFatal FailureKind = iota
	FailureRateLimited
	FailureTransient
)

// String returns the kind's log and metric label.
func (k FailureKind) String() string {
	switch k {
	case FailureRateLimited:
		return "rate_limited"
	case FailureTransient:
		return "transient"
	default:
		return "fatal"
	}
}

// Retryable reports whether another attempt is permitted after this kind of failure.
func (k FailureKind) Retryable() bool {
	return k == FailureRateLimited || k == FailureTransient
}

// Failure is a classified provider error. Exactly one kind applies.
type Failure struct {
	Kind FailureKind

	// StatusCode is the provider status that led to the classification, if known
	StatusCode int

	// RetryAfter is the provider-supplied wait for RateLimited failures, nil when absent
	RetryAfter *time.Duration

	// Cause is the original provider error
	Cause error
}

// RateLimited classifies err as a quota or rate-limit failure.
// retryAfter may be nil when the provider gave no usable retry metadata.
func RateLimited(err error, retryAfter *time.Duration) *Failure {
	return &Failure{Kind: FailureRateLimited, StatusCode: 429, RetryAfter: retryAfter, Cause: err}
}

// Transient classifies err as a server-side fault.
func Transient(statusCode int, err error) *Failure {
	return &Failure{Kind: FailureTransient, StatusCode: statusCode, Cause: err}
}

// Fatal classifies err as non-retryable.
func Fatal(err error) *Failure {
	return &Failure{Kind: FailureFatal, Cause: err}
}

// Error implements the error interface.
func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString(f.Kind.String())
	if f.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", f.StatusCode)
	}
	if f.Cause != nil {
		b.WriteString(": ")
		b.WriteString(f.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the original provider error.
func (f *Failure) Unwrap() error {
	return f.Cause
}

// Classify extracts the *Failure carried by err. Errors without a
// classification are fatal.
func Classify(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) && f != nil {
		return f
	}
	return Fatal(err)
}

// retryDelayPattern matches the JSON form of a protobuf Duration: whole
// seconds with up to nine fractional digits and a trailing "s".
var retryDelayPattern = regexp.MustCompile(`^(\d+)(?:\.(\d{1,9}))?s$`)

// ParseRetryDelay parses a retry delay in seconds such as "3s" or "1.5s".
// Other units ("500ms", "1m"), negative, malformed or empty values, and delays
// too long for a time.Duration report ok=false.
func ParseRetryDelay(s string) (d time.Duration, ok bool) {
	m := retryDelayPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}

	seconds, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || seconds > int64(math.MaxInt64/time.Second)-1 {
		return 0, false
	}

	var nanos int64
	if m[2] != "" {
		frac := m[2] + strings.Repeat("0", 9-len(m[2]))
		nanos, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, false
		}
	}

	return time.Duration(seconds)*time.Second + time.Duration(nanos), true
}
