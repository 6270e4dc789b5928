package llm

import "testing"

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare", `{"a":1}`, `{"a":1}`, true},
		{"prose around", "Here you go:\n{\"a\":1}\nThanks", `{"a":1}`, true},
		{"markdown fence", "```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`, true},
		{"brace in string", `{"a":"}{"} trailing {"b":2}`, `{"a":"}{"}`, true},
		{"escaped quote", `{"a":"say \"}\""}`, `{"a":"say \"}\""}`, true},
		{"first object wins", `{"a":1} {"b":2}`, `{"a":1}`, true},
		{"unbalanced falls back to last brace", `{"a":{"b":1} }x`, `{"a":{"b":1} }`, true},
		{"none", "no json here", "", false},
		{"only close", "}", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ExtractJSONObject(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}
