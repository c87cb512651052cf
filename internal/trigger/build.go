package trigger

import "strings"

// PipelineParameters builds the parameter set for a pipeline-mode trigger:
// the parsed options plus push=false and <name>=true. The injected pair is
// written after the user's options and wins over same-named values, so the
// CI configuration can rely on one boolean flag per invocable pipeline.
func PipelineParameters(name string, options ParameterSet) ParameterSet {
	params := make(ParameterSet, len(options)+2)
	for k, v := range options {
		params[k] = v
	}
	params["push"] = Bool(false)
	params[name] = Bool(true)
	return params
}

// LaneParameters builds the parameter set for a legacy lane-mode trigger:
// exactly the three keys push, lane, and options, where options is the
// remaining tokens rejoined with single spaces, unparsed. This mirrors the
// older automation-script interface that expects one free-form string
// rather than discrete parameters.
func LaneParameters(name string, rest []string) ParameterSet {
	return ParameterSet{
		"push":    Bool(false),
		"lane":    String(name),
		"options": String(strings.Join(rest, " ")),
	}
}
