package model

// Language is an assessable topic.
type Language struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// LanguageType distinguishes the roles a language plays for a learner.
type LanguageType string

const (
	LanguageNative LanguageType = "native"
	LanguageFluent LanguageType = "fluent"
	LanguageTarget LanguageType = "target"
)
