// Package trigger implements the CI trigger chain: parsing command
// arguments into parameters, resolving the target branch, building the
// provider payload for pipeline or lane mode, and running the asynchronous
// trigger-then-reply sequence behind an immediate acknowledgment.
package trigger

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInvocation marks a request that cannot become a trigger:
	// a missing pipeline or lane name, or too few tokens on the comment
	// path. Handlers resolve it to a bad-request response; nothing is
	// triggered.
	ErrMalformedInvocation = errors.New("malformed invocation")

	// ErrMissingProject and ErrMissingBranch guard the request invariant
	// that project and branch are known before any provider call is made.
	ErrMissingProject = errors.New("trigger request has no project")
	ErrMissingBranch  = errors.New("trigger request has no branch")

	// ErrUnknownCommand marks an invocation naming no registered command.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrChannelNotAllowed marks an invocation from a channel outside the
	// command's allow list.
	ErrChannelNotAllowed = errors.New("channel not allowed")

	// ErrRateLimited marks an invocation rejected because its channel has
	// triggered too often.
	ErrRateLimited = errors.New("rate limited")
)

// Mode selects how trigger parameters are built and which provider API
// generation carries them.
type Mode string

const (
	// ModePipeline uses discrete named parameters against the pipeline API.
	ModePipeline Mode = "pipeline"
	// ModeLane packs all options into one opaque string for the legacy
	// automation-script interface, carried by the job API.
	ModeLane Mode = "lane"
)

// Invocation is one incoming command request. It is created by the
// adapter that received the request, never mutated afterwards, and
// discarded once the trigger chain resolves.
type Invocation struct {
	ID      string   // unique per invocation
	Command string   // command name as received, without any slash prefix
	Args    []string // whitespace-split argument tokens, command excluded
	Source  string   // slack, github, schedule, cli
	Channel string   // chat channel name, empty for non-chat sources
	User    string   // requesting user, informational only
	Text    string   // original raw argument text
}

// Request is a fully resolved CI trigger: the project, the branch, and the
// provider parameters. Never mutated after construction.
type Request struct {
	Project    string
	Branch     string
	Parameters ParameterSet
}

// NewRequest builds a Request, enforcing that project and branch are
// non-empty by the time a request exists.
func NewRequest(project, branch string, params ParameterSet) (*Request, error) {
	if project == "" {
		return nil, ErrMissingProject
	}
	if branch == "" {
		return nil, ErrMissingBranch
	}
	return &Request{Project: project, Branch: branch, Parameters: params}, nil
}

// Result is the terminal success value of a trigger: the branch the
// provider reports building and the link to watch it.
type Result struct {
	Branch   string
	BuildURL string
}

// malformed wraps a detail message in ErrMalformedInvocation so callers
// can match the class with errors.Is while keeping the detail.
func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInvocation, fmt.Sprintf(format, args...))
}
