package core

import "strings"

const RedactedValue = "[REDACTED]"

// RedactFields returns a copy of fields with credential-bearing keys masked.
func RedactFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	target := make(map[string]any, len(fields))
	for key, value := range fields {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			target[key] = RedactFields(nested)
			continue
		}
		target[key] = value
	}
	return target
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	switch key {
	case "link_id", "user_id", "platform", "platform_account_id", "username", "client_id", "expires_at":
		return false
	}
	for _, token := range []string{"token", "secret", "password", "authorization", "credential", "ciphertext"} {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}
