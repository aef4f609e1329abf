package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// commandFlags declares the flags one subcommand accepts.
type commandFlags struct {
	values  []string          // flags taking a value, e.g. "config"
	bools   []string          // switches; --no-<name> sets them false
	aliases map[string]string // short form -> long name
	// stopAtPositional ends flag parsing at the first positional so the
	// remaining arguments pass through untouched.
	stopAtPositional bool
}

type parsedFlags struct {
	values map[string]string
	bools  map[string]bool
	args   []string
}

func (p *parsedFlags) value(name string) string {
	return p.values[name]
}

func (p *parsedFlags) isSet(name string) bool {
	_, ok := p.values[name]
	return ok
}

func (p *parsedFlags) flag(name string) bool {
	return p.bools[name]
}

// optionalBool returns nil when the switch was not given.
func (p *parsedFlags) optionalBool(name string) *bool {
	v, ok := p.bools[name]
	if !ok {
		return nil
	}
	return &v
}

func (p *parsedFlags) intValue(name string) (*int, error) {
	raw, ok := p.values[name]
	if !ok {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid --%s value %q", name, raw)
	}
	return &n, nil
}

// parseCommandArgs parses GNU-style flags (--key=value or --key value).
// "--" ends flag parsing.
func parseCommandArgs(args []string, spec commandFlags) (*parsedFlags, error) {
	parsed := &parsedFlags{
		values: make(map[string]string),
		bools:  make(map[string]bool),
	}
	takesValue := toSet(spec.values)
	isBool := toSet(spec.bools)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			parsed.args = append(parsed.args, args[i+1:]...)
			return parsed, nil
		}
		if long, ok := spec.aliases[arg]; ok {
			arg = "--" + long
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			if spec.stopAtPositional {
				parsed.args = append(parsed.args, args[i:]...)
				return parsed, nil
			}
			parsed.args = append(parsed.args, arg)
			continue
		}
		if !strings.HasPrefix(arg, "--") {
			return nil, fmt.Errorf("unsupported short flag: %s", arg)
		}

		body := strings.TrimPrefix(arg, "--")
		key, value, hasValue := strings.Cut(body, "=")
		switch {
		case key == "":
			return nil, fmt.Errorf("invalid flag: %s", arg)
		case takesValue[key]:
			if !hasValue {
				if i+1 >= len(args) {
					return nil, fmt.Errorf("missing value for --%s", key)
				}
				i++
				value = args[i]
			}
			parsed.values[key] = value
		case isBool[key]:
			b := true
			if hasValue {
				v, err := strconv.ParseBool(value)
				if err != nil {
					return nil, fmt.Errorf("invalid --%s value %q", key, value)
				}
				b = v
			}
			parsed.bools[key] = b
		case strings.HasPrefix(key, "no-") && isBool[strings.TrimPrefix(key, "no-")] && !hasValue:
			parsed.bools[strings.TrimPrefix(key, "no-")] = false
		default:
			return nil, fmt.Errorf("unknown flag: %s", arg)
		}
	}
	return parsed, nil
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
