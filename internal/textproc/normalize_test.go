package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"lowercases", "Breaking NEWS", "breaking news"},
		{"strips http url", "see http://example.com/a?b=1 now", "see now"},
		{"strips https url", "see https://example.com now", "see now"},
		{"strips www url", "visit www.example.com today", "visit today"},
		{"strips uppercase url", "visit HTTPS://EXAMPLE.COM today", "visit today"},
		// lowercasing runs last, so a prefix kept here would be stripped on a second pass
		{"strips uppercase prefix", "WWWfoo bar", "bar"},
		{"strips handles and tags", "@pepe dijo #fake algo", "dijo algo"},
		{"keeps spanish letters", "Médicos ODIAN la niñez pingüino", "médicos odian la niñez pingüino"},
		{"digits and punctuation become space", "covid-19: ¡vacuna!", "covid vacuna"},
		{"collapses whitespace", "  uno\t\tdos\n\ntres  ", "uno dos tres"},
		{"only noise", "123 !!! http://x.y", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"Breaking: HTTPX is not a url?",
		"wwwfoo bar",
		"WWWfoo Httpx bar",
		"a@b.c #tag @user",
		"HTTP",
		"ht-tp://weird.example",
		"Ñandú   ÜBER alles",
		"Cura milagrosa descubierta!!! Médicos odian este truco secreto 100%",
		"x y z",
		"éste—es un ‘test’ “con” comillas",
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}
