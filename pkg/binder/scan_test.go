package binder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanVariables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"plain text", "Hello there", []string{}},
		{"single", "Hi {{first_name}}", []string{"first_name"}},
		{"dedup keeps discovery order", "{{ b }} {{ a }} {{ b }}", []string{"b", "a"}},
		{"whitespace control", "{{- name -}}", []string{"name"}},
		{"dotted path reports root", "{{ user.name }} {{ items[0] }}", []string{"user", "items"}},
		{"filter names are not variables", "{{ name | upcase | truncate: 10 }}", []string{"name"}},
		{"filter argument variable", "{{ name | default: fallback }}", []string{"name", "fallback"}},
		{"string literals are ignored", `{{ "first_name" | append: 'x' }}`, []string{}},
		{"if condition", "{% if vip and score > 3 %}{{ perk }}{% endif %}", []string{"vip", "score", "perk"}},
		{"keywords", "{% if a == nil or b != empty %}{% endif %}", []string{"a", "b"}},
		{"delimiter inside string", `{{ "}}" | append: name }}`, []string{"name"}},
		{"assign", `{% assign full = first | append: last %}{{ full }}`, []string{"first", "last"}},
		{"used before assign", `{{ x }}{% assign x = 1 %}`, []string{"x"}},
		{"capture", "{% capture greeting %}Hi {{ name }}{% endcapture %}{{ greeting }}", []string{"name"}},
		{"for loop scope", "{% for item in items limit: n %}{{ item.title }} {{ forloop.index }}{% endfor %}", []string{"items", "n"}},
		{"loop var leaks after endfor", "{% for item in items %}{% endfor %}{{ item }}", []string{"items", "item"}},
		{"range", "{% for i in (1..max) %}{{ i }}{% endfor %}", []string{"max"}},
		{"raw block", "{% raw %}{{ ignored }}{% endraw %}{{ kept }}", []string{"kept"}},
		{"comment block", "{% comment %}{{ ignored }}{% endcomment %}{{ kept }}", []string{"kept"}},
		{"case when", "{% case plan %}{% when 'pro' %}{{ seats }}{% endcase %}", []string{"plan", "seats"}},
		{"lone brace", "a { b } {{ c }}", []string{"c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, scanVariables(tt.src))
		})
	}
}
