package api

import "encoding/json"

func marshalVariables(vars []string) string {
	if len(vars) == 0 {
		return "[]"
	}
	out, err := json.Marshal(vars)
	if err != nil {
		return "[]"
	}
	return string(out)
}
