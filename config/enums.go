package config

//go:generate go-enum --marshal --names --values

// Specification of content generation service.
// ENUM(none, http, openai, gemini)
type GenerationBackend int

// Enabled reports whether directives are sent anywhere at all.
func (b GenerationBackend) Enabled() bool {
	return b != GenerationBackendNone
}
