package trigger

import "strings"

// Parsed is the output of Parse: the pipeline or lane name plus the
// collected options and the raw tokens that followed the name.
type Parsed struct {
	Name    string
	Options ParameterSet
	Rest    []string // tokens after the name, in order, unmodified
}

// Parse splits command argument tokens into a name and an option set.
//
// The first token is the pipeline or lane name and is required. Each
// remaining token is split on ":": no separator makes a boolean flag keyed
// by the full token, exactly one makes a string option, and tokens with
// more than one separator are dropped without error.
func Parse(args []string) (*Parsed, error) {
	if len(args) == 0 || args[0] == "" {
		return nil, malformed("missing pipeline or lane name")
	}

	parsed := &Parsed{
		Name:    args[0],
		Options: make(ParameterSet),
		Rest:    args[1:],
	}

	for _, token := range args[1:] {
		parts := strings.Split(token, ":")
		switch len(parts) {
		case 1:
			parsed.Options[token] = Bool(true)
		case 2:
			parsed.Options[parts[0]] = String(parts[1])
		}
	}

	return parsed, nil
}
