package http

import "strings"

// sensitiveKeys are masked in audit-logged request bodies, matched
// case-insensitively at every nesting level.
var sensitiveKeys = map[string]struct{}{
	"password": {},
	"token":    {},
	"secret":   {},
}

const maskedValue = "********"

// MaskSensitive walks a decoded JSON value and replaces the values of
// sensitive keys wherever they appear, recursing through nested objects
// and arrays. The input is not modified; a masked copy is returned.
func MaskSensitive(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		masked := make(map[string]interface{}, len(v))
		for key, value := range v {
			if _, sensitive := sensitiveKeys[strings.ToLower(key)]; sensitive {
				masked[key] = maskedValue
			} else {
				masked[key] = MaskSensitive(value)
			}
		}
		return masked
	case []interface{}:
		masked := make([]interface{}, len(v))
		for i, item := range v {
			masked[i] = MaskSensitive(item)
		}
		return masked
	default:
		return data
	}
}
