package model

// Language selects both the reflection language and the notification template.
type Language string

const (
	LanguageEnglish Language = "English"
	LanguageSpanish Language = "Spanish"
	LanguageTagalog Language = "Tagalog"
)

const DefaultBibleVersion = "NABRE"

var versionLanguages = map[string]Language{
	"NABRE":     LanguageEnglish,
	"BLPH":      LanguageSpanish,
	"ABTAG2001": LanguageTagalog,
}

var languageVersions = map[Language]string{
	LanguageEnglish: "NABRE",
	LanguageSpanish: "BLPH",
	LanguageTagalog: "ABTAG2001",
}

// Languages lists every supported content language in a stable order.
func Languages() []Language {
	return []Language{LanguageEnglish, LanguageSpanish, LanguageTagalog}
}

// LanguageForVersion maps a bible version to its language. Unknown versions
// are English.
func LanguageForVersion(version string) Language {
	if l, ok := versionLanguages[version]; ok {
		return l
	}
	return LanguageEnglish
}

// VersionForLanguage is the content version the readings are fetched in.
func VersionForLanguage(l Language) string {
	if v, ok := languageVersions[l]; ok {
		return v
	}
	return DefaultBibleVersion
}

// Code is the provider's template language code.
func (l Language) Code() string {
	switch l {
	case LanguageSpanish:
		return "es"
	case LanguageTagalog:
		return "fil"
	default:
		return "en_US"
	}
}
