package exec

import (
	"fmt"
	"sort"
	"strings"
)

// ValidateEnv validates a map of environment overrides and renders it as a
// KEY=value slice suitable for exec.Cmd.Env. Keys must match EnvKeyPattern;
// values are length-capped and must not contain control characters or null
// bytes. The output is sorted for deterministic spawns.
func ValidateEnv(env map[string]string) ([]string, error) {
	if len(env) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(env))
	for key, value := range env {
		if !EnvKeyPattern.MatchString(key) {
			return nil, fmt.Errorf("env key %q: %w", key, ErrInvalidEnvKey)
		}
		if len(value) > MaxEnvValueLength {
			return nil, fmt.Errorf("env %s: %w", key, ErrValueTooLong)
		}
		if strings.Contains(value, "\x00") {
			return nil, fmt.Errorf("env %s: %w", key, ErrNullByte)
		}
		if ControlChars.MatchString(value) {
			return nil, fmt.Errorf("env %s: %w", key, ErrControlChar)
		}
		out = append(out, key+"="+value)
	}
	sort.Strings(out)
	return out, nil
}
