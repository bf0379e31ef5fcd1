package usage

import "testing"

func TestCounterCount(t *testing.T) {
	counter := NewCounter("gpt-4o")

	if got := counter.Count(""); got != 0 {
		t.Errorf("Count(empty) = %d", got)
	}
	short := counter.Count("hello")
	long := counter.Count("hello world, this is a longer sentence about a parser")
	if short <= 0 || long <= short {
		t.Errorf("counts not monotonic: short=%d long=%d", short, long)
	}
}

func TestCounterUnknownModelStillCounts(t *testing.T) {
	counter := NewCounter("claude-sonnet-4-20250514")
	if got := counter.Count("some text to measure"); got <= 0 {
		t.Errorf("Count = %d, want positive", got)
	}
}

func TestContextWindow(t *testing.T) {
	counter := NewCounter("gpt-4o")
	tests := []struct {
		model string
		want  int
	}{
		{"claude-sonnet-4-20250514", 200_000},
		{"gpt-4o", 128_000},
		{"gpt-4o-mini", 128_000},
		{"gpt-4", 8_192},
		{"gemini-2.0-flash", 1_048_576},
		{"totally-unknown", 128_000},
	}
	for _, tt := range tests {
		if got := counter.ContextWindow(tt.model); got != tt.want {
			t.Errorf("ContextWindow(%q) = %d, want %d", tt.model, got, tt.want)
		}
	}
}
