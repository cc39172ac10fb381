package llm

import "regexp"

// ProviderID is the closed set of supported backend families. The
// orchestrator never branches on these values; only the registry does.
type ProviderID string

const (
	ProviderGemini    ProviderID = "gemini"
	ProviderOpenAI    ProviderID = "openai"
	ProviderAnthropic ProviderID = "anthropic"
	ProviderBedrock   ProviderID = "bedrock"
)

// DefaultProvider serves unknown model names, so new releases from the
// default vendor keep working without a table update.
const DefaultProvider = ProviderGemini

// Exact model table, consulted before the pattern list.
var modelTable = map[string]ProviderID{
	"gemini-2.5-pro":          ProviderGemini,
	"gemini-2.5-flash":        ProviderGemini,
	"gemini-2.5-flash-lite":   ProviderGemini,
	"gemini-2.0-flash":        ProviderGemini,
	"gpt-4o":                  ProviderOpenAI,
	"gpt-4o-mini":             ProviderOpenAI,
	"gpt-4-turbo":             ProviderOpenAI,
	"o3":                      ProviderOpenAI,
	"o4-mini":                 ProviderOpenAI,
	"claude-sonnet-4-20250514": ProviderAnthropic,
	"claude-3-5-haiku-latest":  ProviderAnthropic,
	"claude-3-haiku-20240307":  ProviderAnthropic,
}

// Ordered prefix patterns; first match wins. Bedrock model identifiers
// carry a vendor namespace or region prefix ("anthropic.claude-...",
// "us.amazon.nova-...").
var modelPatterns = []struct {
	re *regexp.Regexp
	id ProviderID
}{
	{regexp.MustCompile(`^(us|eu|apac)\.`), ProviderBedrock},
	{regexp.MustCompile(`^(amazon|anthropic|meta|mistral)\.`), ProviderBedrock},
	{regexp.MustCompile(`^gemini-`), ProviderGemini},
	{regexp.MustCompile(`^(gpt-|o[0-9])`), ProviderOpenAI},
	{regexp.MustCompile(`^claude-`), ProviderAnthropic},
}

// Classify maps a model identifier to its provider identity. Pure and
// deterministic; safe to call on every request.
func Classify(modelID string) ProviderID {
	if id, ok := modelTable[modelID]; ok {
		return id
	}
	for _, p := range modelPatterns {
		if p.re.MatchString(modelID) {
			return p.id
		}
	}
	return DefaultProvider
}

// SupportsNativeTokenCounting reports whether the provider exposes a
// server-side count endpoint. Everything else falls back to the
// character estimator.
func SupportsNativeTokenCounting(id ProviderID) bool {
	return id == ProviderGemini
}

var contextLimits = map[string]int{
	"gemini-2.5-pro":        1_048_576,
	"gemini-2.5-flash":      1_048_576,
	"gemini-2.5-flash-lite": 1_048_576,
	"gemini-2.0-flash":      1_048_576,
	"gpt-4o":                128_000,
	"gpt-4o-mini":           128_000,
	"gpt-4-turbo":           128_000,
	"o3":                    200_000,
	"o4-mini":               200_000,
	"claude-sonnet-4-20250514": 200_000,
	"claude-3-5-haiku-latest":  200_000,
	"claude-3-haiku-20240307":  200_000,
}

// DefaultContextLimit is the conservative window assumed for models the
// table does not know.
const DefaultContextLimit = 32_768

// ApproximateContextLimit returns the model's context window in tokens.
func ApproximateContextLimit(modelID string) int {
	if limit, ok := contextLimits[modelID]; ok {
		return limit
	}
	return DefaultContextLimit
}

// KnownModels lists the exact-table model identifiers, for display.
func KnownModels() map[string]ProviderID {
	out := make(map[string]ProviderID, len(modelTable))
	for m, id := range modelTable {
		out[m] = id
	}
	return out
}
