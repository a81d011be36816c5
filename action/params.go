package action

import (
	"fmt"

	"docflow/model"
)

// Parameter readers used by the actions. Parameters arrive already
// resolved against the run context, so values carry their native types.

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func requiredStringParam(params map[string]any, key string, actionName string) (string, error) {
	s := stringParam(params, key)
	if len(s) == 0 {
		return "", model.NewFatalError(fmt.Errorf("action %s: parameter %q is required", actionName, key))
	}
	return s, nil
}

func stringSliceParam(params map[string]any, key string) []string {
	switch v := params[key].(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	}
	return nil
}

func mapParam(params map[string]any, key string) map[string]any {
	if v, ok := params[key].(map[string]any); ok {
		return v
	}
	return nil
}

func stringMapParam(params map[string]any, key string) map[string]string {
	src := mapParam(params, key)
	if src == nil {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
