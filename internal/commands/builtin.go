package commands

import (
	"github.com/alekspetrov/shipbot/internal/trigger"
)

// registerBuiltins installs the stock command set.
func (r *Registry) registerBuiltins() {
	r.Register(&Command{
		Name:    "ci",
		Usage:   "/ci <pipeline> [option:value...]",
		Help:    "Run a CI pipeline",
		Handler: buildPipeline,
	})
	r.Register(&Command{
		Name:    "fastlane",
		Usage:   "/fastlane <lane> [option:value...]",
		Help:    "Run a fastlane lane through the legacy job API",
		Handler: buildLane,
	})
	r.Register(&Command{
		Name:    "testflight",
		Usage:   "/testflight <App> version:<version> [option:value...]",
		Help:    "Push a release build to TestFlight from its release branch",
		Handler: buildRelease("testflight", true),
	})
	r.Register(&Command{
		Name:    "beta",
		Usage:   "/beta <App> [option:value...]",
		Help:    "Ship a beta build",
		Handler: buildRelease("beta", false),
	})
	r.Register(&Command{
		Name:  "help",
		Usage: "/help",
		Help:  "Show this list",
	})
}

// buildPipeline assembles a pipeline-mode trigger: the first argument names
// the pipeline, the rest become structured parameters.
func buildPipeline(cfg Config, inv *trigger.Invocation) (trigger.Mode, *trigger.Request, error) {
	parsed, err := trigger.Parse(inv.Args)
	if err != nil {
		return "", nil, err
	}

	branch := trigger.ResolveBranch(parsed.Options, "", cfg.DefaultBranch)
	req, err := trigger.NewRequest(cfg.Project, branch, trigger.PipelineParameters(parsed.Name, parsed.Options))
	if err != nil {
		return "", nil, err
	}
	return trigger.ModePipeline, req, nil
}

// buildLane assembles a lane-mode trigger: the first argument names the
// lane, the rest are packed into one opaque options string.
func buildLane(cfg Config, inv *trigger.Invocation) (trigger.Mode, *trigger.Request, error) {
	parsed, err := trigger.Parse(inv.Args)
	if err != nil {
		return "", nil, err
	}

	branch := trigger.ResolveBranch(parsed.Options, "", cfg.DefaultBranch)
	req, err := trigger.NewRequest(cfg.Project, branch, trigger.LaneParameters(parsed.Name, parsed.Rest))
	if err != nil {
		return "", nil, err
	}
	return trigger.ModeLane, req, nil
}

// buildRelease returns the handler behind the release shorthands. The app
// token is rewritten into a target option and the lane is fixed; release
// flows additionally derive the conventional release branch from the app
// name and the version option.
func buildRelease(lane string, deriveBranch bool) Handler {
	return func(cfg Config, inv *trigger.Invocation) (trigger.Mode, *trigger.Request, error) {
		parsed, err := trigger.Parse(inv.Args)
		if err != nil {
			return "", nil, err
		}

		var derived string
		if deriveBranch {
			derived = trigger.ReleaseBranch(parsed.Name, parsed.Options)
		}
		branch := trigger.ResolveBranch(parsed.Options, derived, cfg.DefaultBranch)

		rest := append([]string{"target:" + parsed.Name}, parsed.Rest...)
		req, err := trigger.NewRequest(cfg.Project, branch, trigger.LaneParameters(lane, rest))
		if err != nil {
			return "", nil, err
		}
		return trigger.ModeLane, req, nil
	}
}
