package entity

import (
	"golang.org/x/text/language"
)

// Language is a supported interface language of a user.
type Language string

const (
	LanguageUA Language = "ua"
	LanguageEN Language = "en"
	LanguageRU Language = "ru"
)

var (
	supportedTags = []language.Tag{language.Ukrainian, language.English, language.Russian}
	tagLanguages  = []Language{LanguageUA, LanguageEN, LanguageRU}
	matcher       = language.NewMatcher(supportedTags)
)

// ParseLanguage accepts the legacy short codes ("ua") as well as BCP 47 tags
// or Accept-Language values and falls back to Ukrainian.
func ParseLanguage(s string) Language {
	switch Language(s) {
	case LanguageUA, LanguageEN, LanguageRU:
		return Language(s)
	case "":
		return LanguageUA
	}
	tags, _, err := language.ParseAcceptLanguage(s)
	if err != nil || len(tags) == 0 {
		return LanguageUA
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return LanguageUA
	}
	return tagLanguages[idx]
}

func (l Language) Valid() bool {
	return l == LanguageUA || l == LanguageEN || l == LanguageRU
}
