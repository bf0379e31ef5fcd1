package exec

import (
	"fmt"
	"strings"
)

// IsSafeArgument reports whether a single argument token is safe to pass to
// a child process. Tokens containing shell metacharacters, control
// characters, or null bytes are rejected even though the child is spawned
// without a shell; the argument vector must stay inert if it is ever logged,
// templated, or re-executed on a platform that requires shell wrapping.
func IsSafeArgument(arg string) bool {
	return SanitizeArgument(arg) == nil
}

// SanitizeArgument validates a single argument token and describes why it
// is unsafe, or returns nil.
func SanitizeArgument(arg string) error {
	if arg == "" {
		return ErrEmptyValue
	}
	if strings.Contains(arg, "\x00") {
		return ErrNullByte
	}
	if ControlChars.MatchString(arg) {
		return ErrControlChar
	}
	if ShellMetachars.MatchString(arg) {
		return ErrShellMetachar
	}
	return nil
}

// SanitizeArguments validates a slice of argument tokens. The first unsafe
// token fails the whole slice with positional context.
func SanitizeArguments(args []string) ([]string, error) {
	if args == nil {
		return nil, nil
	}
	result := make([]string, 0, len(args))
	for i, arg := range args {
		if err := SanitizeArgument(arg); err != nil {
			return nil, &ArgumentError{Index: i, Arg: arg, Err: err}
		}
		result = append(result, arg)
	}
	return result, nil
}

// ValidateFlagValue checks the value side of a flag=value argument:
// metachar-free and length-capped.
func ValidateFlagValue(value string) error {
	if len(value) > MaxArgValueLength {
		return ErrValueTooLong
	}
	return SanitizeArgument(value)
}

// FilterArgs keeps only arguments that pass the whitelist contract: a bare
// flag present in allowedFlags, or a flag=value pair whose flag is allowed
// and whose value is safe. Everything else is dropped and reported in the
// second return value so callers can log what was discarded.
func FilterArgs(args []string, allowedFlags map[string]bool) (kept, dropped []string) {
	for _, arg := range args {
		flag, value, hasValue := strings.Cut(arg, "=")
		if !allowedFlags[flag] {
			dropped = append(dropped, arg)
			continue
		}
		if hasValue {
			if err := ValidateFlagValue(value); err != nil {
				dropped = append(dropped, arg)
				continue
			}
		}
		kept = append(kept, arg)
	}
	return kept, dropped
}

// ArgumentError reports which argument failed validation.
type ArgumentError struct {
	Index int
	Arg   string
	Err   error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %d is unsafe: %v", e.Index, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}
