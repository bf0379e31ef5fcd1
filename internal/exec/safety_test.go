package exec

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeArgumentRejectsMetachars(t *testing.T) {
	// Every character the spawn contract forbids in argument tokens.
	metachars := []string{";", "&", "|", "`", "$", "(", ")", "{", "}", "[", "]", "<", ">", "*", "?", "'", `"`, `\`}

	for _, ch := range metachars {
		arg := "value" + ch + "tail"
		if err := SanitizeArgument(arg); !errors.Is(err, ErrShellMetachar) {
			t.Errorf("SanitizeArgument(%q) = %v, want ErrShellMetachar", arg, err)
		}
	}
}

func TestSanitizeArgumentAcceptsCommonTokens(t *testing.T) {
	for _, arg := range []string{
		"--yes-always",
		"--model=gpt-4.1",
		"-v",
		"/tmp/scout-task-123.txt",
		"some value with spaces",
	} {
		if err := SanitizeArgument(arg); err != nil {
			t.Errorf("SanitizeArgument(%q) = %v, want nil", arg, err)
		}
	}
}

func TestSanitizeArgumentRejectsControlAndNull(t *testing.T) {
	tests := []struct {
		arg  string
		want error
	}{
		{"", ErrEmptyValue},
		{"a\x00b", ErrNullByte},
		{"line1\nline2", ErrControlChar},
		{"cr\rhere", ErrControlChar},
	}
	for _, tt := range tests {
		if err := SanitizeArgument(tt.arg); !errors.Is(err, tt.want) {
			t.Errorf("SanitizeArgument(%q) = %v, want %v", tt.arg, err, tt.want)
		}
	}
}

func TestSanitizeArgumentsReportsIndex(t *testing.T) {
	_, err := SanitizeArguments([]string{"ok", "bad;rm", "also-ok"})
	var argErr *ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("err = %v, want *ArgumentError", err)
	}
	if argErr.Index != 1 {
		t.Errorf("Index = %d, want 1", argErr.Index)
	}
}

func TestFilterArgs(t *testing.T) {
	allowed := map[string]bool{"--yes-always": true, "--model": true}

	kept, dropped := FilterArgs([]string{
		"--yes-always",
		"--model=sonnet",
		"--model=bad;value",
		"; rm -rf /",
		"--unknown-flag",
	}, allowed)

	wantKept := []string{"--yes-always", "--model=sonnet"}
	if len(kept) != len(wantKept) {
		t.Fatalf("kept = %v, want %v", kept, wantKept)
	}
	for i := range wantKept {
		if kept[i] != wantKept[i] {
			t.Errorf("kept[%d] = %q, want %q", i, kept[i], wantKept[i])
		}
	}
	if len(dropped) != 3 {
		t.Errorf("dropped = %v, want 3 entries", dropped)
	}
}

func TestFilterArgsLengthCap(t *testing.T) {
	allowed := map[string]bool{"--message": true}
	long := "--message=" + strings.Repeat("a", MaxArgValueLength+1)

	kept, dropped := FilterArgs([]string{long}, allowed)
	if len(kept) != 0 || len(dropped) != 1 {
		t.Errorf("kept=%v dropped=%v, want oversized value dropped", kept, dropped)
	}
}

func TestValidateExecutable(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"aider", true},
		{"claude", true},
		{"/usr/local/bin/aider", true},
		{"./bin/tool", true},
		{"", false},
		{"-aider", false},
		{"aider;rm", false},
		{"aider\n", false},
		{"name with space", false},
	}
	for _, tt := range tests {
		err := ValidateExecutable(tt.value)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateExecutable(%q) = %v, want ok=%v", tt.value, err, tt.ok)
		}
	}
}

func TestValidateWorkDir(t *testing.T) {
	if err := ValidateWorkDir("/home/dev/project"); err != nil {
		t.Errorf("absolute clean dir rejected: %v", err)
	}
	if err := ValidateWorkDir("relative/path"); !errors.Is(err, ErrRelativeWorkDir) {
		t.Errorf("relative dir: err = %v, want ErrRelativeWorkDir", err)
	}
	if err := ValidateWorkDir("/tmp/$(whoami)"); !errors.Is(err, ErrUnsafeWorkDirPath) {
		t.Errorf("metachar dir: err = %v, want ErrUnsafeWorkDirPath", err)
	}
}

func TestValidateEnv(t *testing.T) {
	env, err := ValidateEnv(map[string]string{
		"ANTHROPIC_API_KEY": "sk-test",
		"AIDER_MODEL":       "sonnet",
	})
	if err != nil {
		t.Fatalf("ValidateEnv returned error: %v", err)
	}
	if len(env) != 2 || env[0] != "AIDER_MODEL=sonnet" {
		t.Errorf("env = %v, want sorted KEY=value pairs", env)
	}

	if _, err := ValidateEnv(map[string]string{"lower": "x"}); !errors.Is(err, ErrInvalidEnvKey) {
		t.Errorf("lowercase key: err = %v, want ErrInvalidEnvKey", err)
	}
	if _, err := ValidateEnv(map[string]string{"KEY": "bad\nvalue"}); !errors.Is(err, ErrControlChar) {
		t.Errorf("control char value: err = %v, want ErrControlChar", err)
	}
	if _, err := ValidateEnv(map[string]string{"KEY": strings.Repeat("v", MaxEnvValueLength+1)}); !errors.Is(err, ErrValueTooLong) {
		t.Errorf("long value: err = %v, want ErrValueTooLong", err)
	}
}
