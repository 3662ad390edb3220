package compose

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type namedState map[string]any

func TestCompose(t *testing.T) {
	state := map[string]any{
		"agentName": "Morty",
		"sender": map[string]any{
			"name": "alice",
			"tags": []string{"admin", "regular"},
		},
		"count":   3.0,
		"ratio":   0.25,
		"missing": nil,
		"nested":  namedState{"deep": map[string]string{"value": "ok"}},
		"meta":    map[string]any{"b": 2, "a": 1},
	}
	defaults := map[string]any{
		"agentName": "fallback",
		"greeting":  "hi",
	}
	formatters := map[string]Formatter{
		"upper": func(v any) string { return strings.ToUpper(Stringify(v)) },
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"plain", "Hello {{agentName}}", "Hello Morty"},
		{"nested", "{{sender.name}} said", "alice said"},
		{"slice", "tags: {{sender.tags}}", "tags: admin,regular"},
		{"default", "{{greeting}} there", "hi there"},
		{"formatter", "{{sender.name|upper}}", "ALICE"},
		{"unknown formatter", "{{sender.name|nope}}", "alice"},
		{"integral float", "{{count}} messages", "3 messages"},
		{"fraction", "{{ratio}}", "0.25"},
		{"nil value", "[{{missing}}]", "[]"},
		{"named map type", "{{nested.deep.value}}", "ok"},
		{"object", "{{meta}}", `{"a":1,"b":2}`},
		{"spaces", "{{ agentName }}", "Morty"},
		{"no placeholders", "nothing to do", "nothing to do"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compose(tt.template, state, defaults, formatters))
		})
	}
}

func TestComposeUnresolvedPreserved(t *testing.T) {
	state := map[string]any{"a": map[string]any{"b": "x"}}
	defaults := map[string]any{"c": "y"}

	templates := []string{
		"{{unknown}}",
		"before {{a.missing}} after",
		"{{a.b.c}}",
		"{{c.d|upper}}",
		"{{missing}} and {{a.b}}",
	}
	want := []string{
		"{{unknown}}",
		"before {{a.missing}} after",
		"{{a.b.c}}",
		"{{c.d|upper}}",
		"{{missing}} and x",
	}

	for i, tmpl := range templates {
		assert.Equal(t, want[i], Compose(tmpl, state, defaults, nil))
	}
}

func TestComposeFallsBackThroughNilState(t *testing.T) {
	assert.Equal(t, "hi", Compose("{{greeting}}", nil, map[string]any{"greeting": "hi"}, nil))
}

func TestComposeIdempotent(t *testing.T) {
	state := map[string]any{"recentMessages": "alice: hi\nbob: hello", "n": 2}
	defaults := map[string]any{"agentName": "Morty"}
	tmpl := "{{agentName}} sees {{n}} messages:\n{{recentMessages}}\n{{unknown}}"

	first := Compose(tmpl, state, defaults, nil)
	second := Compose(tmpl, state, defaults, nil)

	assert.Equal(t, first, second)
}
