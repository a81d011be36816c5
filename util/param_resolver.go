package util

import (
	"fmt"
	"regexp"
	"strings"

	"docflow/model"
	"github.com/oliveagle/jsonpath"
)

var tokenRegex = regexp.MustCompile(`\$\{(.*?)\}`)

// ResolveParams substitutes ${path.to.value} templates in params against
// the run context. A parameter that is exactly one token keeps the typed
// value; tokens embedded in longer strings interpolate as text. A path
// absent from the context fails with ContextResolutionError.
func ResolveParams(data map[string]any, params map[string]any) (map[string]any, error) {
	output := make(map[string]any)
	if err := resolveParams(data, params, output); err != nil {
		return nil, err
	}
	return output, nil
}

func resolveParams(data map[string]any, params map[string]any, output map[string]any) error {
	for k, v := range params {
		switch tv := v.(type) {
		case map[string]any:
			out := make(map[string]any)
			if err := resolveParams(data, tv, out); err != nil {
				return err
			}
			output[k] = out
		case []any:
			out, err := resolveList(data, tv)
			if err != nil {
				return err
			}
			output[k] = out
		case string:
			value, err := resolveString(data, tv)
			if err != nil {
				return err
			}
			output[k] = value
		default:
			output[k] = v
		}
	}
	return nil
}

func resolveList(data map[string]any, list []any) ([]any, error) {
	output := make([]any, 0, len(list))
	for _, v := range list {
		switch tv := v.(type) {
		case map[string]any:
			out := make(map[string]any)
			if err := resolveParams(data, tv, out); err != nil {
				return nil, err
			}
			output = append(output, out)
		case []any:
			out, err := resolveList(data, tv)
			if err != nil {
				return nil, err
			}
			output = append(output, out)
		case string:
			value, err := resolveString(data, tv)
			if err != nil {
				return nil, err
			}
			output = append(output, value)
		default:
			output = append(output, v)
		}
	}
	return output, nil
}

func resolveString(data map[string]any, s string) (any, error) {
	tokens := tokenRegex.FindAllStringSubmatch(s, -1)
	if len(tokens) == 0 {
		return s, nil
	}
	if len(tokens) == 1 && tokens[0][0] == s {
		return Lookup(data, tokens[0][1])
	}
	newStr := s
	for _, t := range tokens {
		value, err := Lookup(data, t[1])
		if err != nil {
			return nil, err
		}
		newStr = strings.ReplaceAll(newStr, t[0], fmt.Sprintf("%v", value))
	}
	return newStr, nil
}

// Lookup resolves a dotted path against nested maps.
func Lookup(data map[string]any, path string) (any, error) {
	value, err := jsonpath.JsonPathLookup(data, "$."+path)
	if err != nil {
		return nil, model.ContextResolutionError{Expression: path}
	}
	return value, nil
}

// ValidateTemplates checks template syntax at registration time; whether
// a path exists stays a runtime concern.
func ValidateTemplates(params map[string]any) error {
	for k, v := range params {
		switch tv := v.(type) {
		case map[string]any:
			if err := ValidateTemplates(tv); err != nil {
				return err
			}
		case []any:
			if err := validateTemplateList(tv); err != nil {
				return fmt.Errorf("parameter %q: %w", k, err)
			}
		case string:
			if err := validateTemplateString(tv); err != nil {
				return fmt.Errorf("parameter %q: %w", k, err)
			}
		}
	}
	return nil
}

func validateTemplateList(list []any) error {
	for _, v := range list {
		switch tv := v.(type) {
		case map[string]any:
			if err := ValidateTemplates(tv); err != nil {
				return err
			}
		case []any:
			if err := validateTemplateList(tv); err != nil {
				return err
			}
		case string:
			if err := validateTemplateString(tv); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateTemplateString(s string) error {
	for _, t := range tokenRegex.FindAllStringSubmatch(s, -1) {
		path := t[1]
		if len(path) == 0 {
			return fmt.Errorf("empty template expression in %q", s)
		}
		if _, err := jsonpath.Compile("$." + path); err != nil {
			return fmt.Errorf("bad template expression %q", path)
		}
	}
	if strings.Contains(tokenRegex.ReplaceAllString(s, ""), "${") {
		return fmt.Errorf("unterminated template expression in %q", s)
	}
	return nil
}
