package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLanguage(t *testing.T) {
	cases := map[string]Language{
		"":                    LanguageUA,
		"ua":                  LanguageUA,
		"en":                  LanguageEN,
		"ru":                  LanguageRU,
		"uk-UA":               LanguageUA,
		"en-GB,en;q=0.8":      LanguageEN,
		"ja":                  LanguageUA,
		"not a language ;;;;": LanguageUA,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLanguage(in), in)
	}
}

func TestSocialUsername(t *testing.T) {
	assert.Equal(t, "123@google", SocialUsername(ProviderGoogle, "123"))
	assert.True(t, IsSocialUsername("42@facebook"))
	assert.False(t, IsSocialUsername("a@x.com"))
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleLegal.Valid())
	assert.False(t, Role("ROOT").Valid())
}
