package session

import "testing"

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"plain string", "abc.def.ghi", "abc.def.ghi"},
		{"whitespace trimmed", "  abc  ", "abc"},
		{"object Object literal", "[object Object]", ""},
		{"empty string", "", ""},
		{"nil", nil, ""},
		{"serialized access_token", `{"access_token":"tok1"}`, "tok1"},
		{"serialized camelCase", `{"accessToken":"tok2"}`, "tok2"},
		{"serialized token field", `{"token":"tok3"}`, "tok3"},
		{"serialized jwt field", `{"jwt":"tok4"}`, "tok4"},
		{"nested under data", `{"data":{"access_token":"tok5"}}`, "tok5"},
		{"double-serialized string", `"tok6"`, "tok6"},
		{"map value", map[string]any{"token": "tok7"}, "tok7"},
		{"map with data nesting", map[string]any{"data": map[string]any{"jwt": "tok8"}}, "tok8"},
		{"field priority order", map[string]any{"token": "low", "access_token": "high"}, "high"},
		{"object Object inside field", map[string]any{"token": "[object Object]"}, ""},
		{"json array", `[1,2,3]`, ""},
		{"broken json object", `{"token":`, ""},
		{"two data levels too deep", `{"data":{"data":{"token":"x"}}}`, ""},
		{"unsupported type", 42, ""},
		{"byte slice", []byte(`{"access_token":"tok9"}`), "tok9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractToken(tt.in); got != tt.want {
				t.Errorf("ExtractToken(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
