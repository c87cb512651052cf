package trigger

import (
	"fmt"
	"strings"
)

// BranchKey and VersionKey are the option names the branch resolver
// recognizes. They otherwise pass through like any other option.
const (
	BranchKey  = "branch"
	VersionKey = "version"
)

// ResolveBranch picks the branch for a trigger. Resolution order, first
// match wins: an explicit branch option, the derived branch if the caller
// computed one, then the configured default. Resolution never fails.
func ResolveBranch(options ParameterSet, derived, defaultBranch string) string {
	if p, ok := options[BranchKey]; ok && !p.IsBool() && p.StringValue() != "" {
		return p.StringValue()
	}
	if derived != "" {
		return derived
	}
	return defaultBranch
}

// ReleaseBranch derives the conventional release branch for an app and a
// version option, e.g. release/babylon/3.13.0. It returns "" when either
// part is missing so the caller falls through to the default branch. Only
// the release-build flows derive a branch this way.
func ReleaseBranch(app string, options ParameterSet) string {
	if app == "" {
		return ""
	}
	version, ok := options[VersionKey]
	if !ok || version.IsBool() || version.StringValue() == "" {
		return ""
	}
	return fmt.Sprintf("release/%s/%s", strings.ToLower(app), version.StringValue())
}
