package gemini

import "testing"

func TestStripJSONFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain json untouched",
			input: `{"intent":"order_product"}`,
			want:  `{"intent":"order_product"}`,
		},
		{
			name:  "json fence",
			input: "```json\n{\"intent\":\"order_product\"}\n```",
			want:  `{"intent":"order_product"}`,
		},
		{
			name:  "bare fence",
			input: "```\n[1,2,3]\n```",
			want:  `[1,2,3]`,
		},
		{
			name:  "surrounding whitespace",
			input: "  \n```json\n{}\n```\n  ",
			want:  `{}`,
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripJSONFences(tt.input); got != tt.want {
				t.Errorf("StripJSONFences(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
