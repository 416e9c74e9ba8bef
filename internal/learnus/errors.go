package learnus

import "fmt"

// Login protocol steps, used to identify where an SSO attempt failed.
const (
	StepSeed        = "seed"
	StepChallenge   = "challenge"
	StepExchange    = "exchange"
	StepTransport   = "transport"
	StepCredentials = "credentials"
)

// AuthError reports a failed SSO login together with the step that aborted it.
// Logins never retry internally; the first missing field wins.
type AuthError struct {
	Step    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("sso login failed (%s): %s", e.Step, e.Message)
}

const (
	FetchUnavailable = "unavailable"
	FetchPageShape   = "page_shape"
)

// FetchError distinguishes an unreachable upstream from a page whose layout
// no longer matches what the parsers expect.
type FetchError struct {
	Kind    string
	Message string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed (%s): %s", e.Kind, e.Message)
}
