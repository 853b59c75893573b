package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

type Kind int

const (
	KindOK Kind = iota
	KindDenied
	KindFailed
)

// Denial is a terminal authorization outcome. Its value is the sentinel the caller branches on.
type Denial string

const (
	DenialAuthRequired    Denial = "AUTH_REQUIRED"
	DenialUpgradeRequired Denial = "UPGRADE_TO_EXTRA"
	DenialKeyRequired     Denial = "KEY_REQUIRED"
)

type FailureKind int

const (
	FailureInternal FailureKind = iota
	FailureInvalidCredential
	FailureRateLimited
	FailureUpstream
	FailureConnection
	FailureMisconfigured
	FailureMalformed
)

type Failure struct {
	Kind     FailureKind
	Provider Provider
	Status   int
	Detail   string
}

// Message is the caller-visible text for the failure.
func (f Failure) Message() string {
	switch f.Kind {
	case FailureInvalidCredential:
		return "AUTH ERROR: The API Key is invalid."
	case FailureRateLimited:
		return "RATE LIMIT: Please wait a moment."
	case FailureUpstream:
		return fmt.Sprintf("%s ERROR (%d)", strings.ToUpper(string(f.Provider)), f.Status)
	case FailureConnection:
		return "CONNECTION ERROR: " + f.Detail
	case FailureMisconfigured:
		return "System Error: AI credential unavailable."
	case FailureMalformed:
		return "System Error: Request body format unreadable."
	default:
		return "System Critical Error: " + f.Detail
	}
}

// Result is the outcome of one gateway request.
type Result struct {
	Kind   Kind
	Answer string
	// Image is a data URI, empty when no image was produced.
	Image string
	Agent Agent

	Denial  Denial
	Reason  string
	Failure *Failure
}

func OK(answer, image string, agent Agent) Result {
	return Result{Kind: KindOK, Answer: answer, Image: image, Agent: agent}
}

func Denied(d Denial, reason string) Result {
	return Result{Kind: KindDenied, Denial: d, Reason: reason, Agent: AgentGeneral}
}

func Failed(f Failure, agent Agent) Result {
	return Result{Kind: KindFailed, Failure: &f, Agent: agent}
}

// Text is the `response` string the caller receives.
func (r Result) Text() string {
	switch r.Kind {
	case KindDenied:
		return string(r.Denial)
	case KindFailed:
		return r.Failure.Message()
	default:
		return r.Answer
	}
}

// UpstreamError is returned by model and search adapters when the upstream answered with an error status
// or could not be reached.
type UpstreamError struct {
	Provider Provider
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Classify turns an upstream call error into a caller-visible failure.
func Classify(err error) Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		return Failure{Kind: FailureConnection, Detail: "upstream timed out"}
	}

	var uErr *UpstreamError
	if !errors.As(err, &uErr) {
		return Failure{Kind: FailureConnection, Detail: err.Error()}
	}
	switch {
	case uErr.Status == http.StatusUnauthorized:
		return Failure{Kind: FailureInvalidCredential, Provider: uErr.Provider, Status: uErr.Status}
	case uErr.Status == http.StatusTooManyRequests:
		return Failure{Kind: FailureRateLimited, Provider: uErr.Provider, Status: uErr.Status}
	case uErr.Status != 0:
		return Failure{Kind: FailureUpstream, Provider: uErr.Provider, Status: uErr.Status}
	case uErr.Err != nil:
		return Failure{Kind: FailureConnection, Provider: uErr.Provider, Detail: uErr.Err.Error()}
	default:
		return Failure{Kind: FailureUpstream, Provider: uErr.Provider}
	}
}
