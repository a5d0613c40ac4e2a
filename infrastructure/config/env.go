package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	domainconfig "github.com/felixgeelhaar/agentsim/domain/config"
)

var (
	// ${VAR}, ${VAR:-default} and ${VAR:?message}
	bracketPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*|:\?[^}]*)?\}`)
	// $VAR
	simplePattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// envExpander expands environment references in configuration text.
type envExpander struct {
	strict  bool
	lookup  func(string) (string, bool)
	missing []string
}

func (e *envExpander) get(name string) (string, bool) {
	if e.lookup != nil {
		return e.lookup(name)
	}
	return os.LookupEnv(name)
}

// Expand replaces environment references in input.
// Supported patterns:
//   - ${VAR} expands to the value of VAR
//   - ${VAR:-default} expands to VAR or "default" when unset or empty
//   - ${VAR:?message} fails when VAR is unset or empty
//   - $VAR simple expansion
//
// Unset variables expand to the empty string unless the expander is strict.
// "$$" escapes a literal dollar sign.
func (e *envExpander) Expand(input string) (string, error) {
	e.missing = nil

	const escaped = "\x00dollar\x00"
	input = strings.ReplaceAll(input, "$$", escaped)

	result := bracketPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := bracketPattern.FindStringSubmatch(match)
		name, modifier := sub[1], sub[2]
		value, ok := e.get(name)

		switch {
		case strings.HasPrefix(modifier, ":-"):
			if !ok || value == "" {
				return modifier[2:]
			}
		case strings.HasPrefix(modifier, ":?"):
			if !ok || value == "" {
				e.missing = append(e.missing, fmt.Sprintf("%s: %s", name, modifier[2:]))
				return match
			}
		case !ok:
			if e.strict {
				e.missing = append(e.missing, name)
			}
			return ""
		}
		return value
	})

	result = simplePattern.ReplaceAllStringFunc(result, func(match string) string {
		name := match[1:]
		value, ok := e.get(name)
		if !ok {
			if e.strict {
				e.missing = append(e.missing, name)
			}
			return ""
		}
		return value
	})

	if len(e.missing) > 0 {
		return "", fmt.Errorf("%w: %s", domainconfig.ErrMissingEnvVar, strings.Join(e.missing, ", "))
	}

	return strings.ReplaceAll(result, escaped, "$"), nil
}

// ExpandEnv expands environment references, leaving unset ones empty.
func ExpandEnv(input string) string {
	e := &envExpander{}
	result, err := e.Expand(input)
	if err != nil {
		// Only ${VAR:?msg} fails in lenient mode; keep the input as written.
		return input
	}
	return result
}

// ExpandEnvStrict expands environment references and fails on unset ones.
func ExpandEnvStrict(input string) (string, error) {
	e := &envExpander{strict: true}
	return e.Expand(input)
}
