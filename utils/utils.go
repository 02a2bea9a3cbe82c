package utils

import "fmt"

// Str renders any JSON-decoded scalar as a string; nil becomes "".
func Str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
