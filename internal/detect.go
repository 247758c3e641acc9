package internal

import (
	"strings"

	"github.com/tidwall/gjson"
)

// vendorPatterns maps URL substrings to providers. First match wins; the
// order puts the most specific hosts before generic vendor names.
var vendorPatterns = []struct {
	pattern  string
	provider string
}{
	{"generativelanguage.googleapis.com", ProviderGemini},
	{"cloudcode-pa.googleapis.com", ProviderGemini},
	{"aiplatform.googleapis.com", ProviderVertex},
	{"openai.azure.com", ProviderAzure},
	{"api.anthropic.com", ProviderAnthropic},
	{"api.openai.com", ProviderOpenAI},
	{"vertex", ProviderVertex},
	{"gemini", ProviderGemini},
	{"anthropic", ProviderAnthropic},
	{"azure", ProviderAzure},
	{"openai", ProviderOpenAI},
}

// DetectProvider classifies a captured request by vendor and wire-protocol.
// The URL is matched against the vendor table first; on a hit, the body
// structure refines the protocol. Malformed bodies degrade to the custom
// protocol, and an unmatched URL yields ("unknown", "custom"). It never
// fails.
func DetectProvider(url string, payload []byte) (provider, protocol string) {
	lowered := strings.ToLower(url)

	provider = ProviderUnknown
	for _, vp := range vendorPatterns {
		if strings.Contains(lowered, vp.pattern) {
			provider = vp.provider
			break
		}
	}

	if provider == ProviderUnknown {
		return ProviderUnknown, ProtocolCustom
	}

	return provider, detectProtocol(payload)
}

// detectProtocol inspects the request body structure. The contents array is
// the Gemini signature; system alongside messages is Anthropic; messages
// alone is OpenAI-compatible.
func detectProtocol(payload []byte) string {
	if len(payload) == 0 || !gjson.ValidBytes(payload) {
		return ProtocolCustom
	}

	body := gjson.ParseBytes(payload)

	if requestField(body, "contents").IsArray() {
		return ProtocolGemini
	}

	messages := requestField(body, "messages")
	if messages.Exists() {
		if requestField(body, "system").Exists() {
			return ProtocolAnthropic
		}
		return ProtocolOpenAICompatible
	}

	return ProtocolCustom
}

// requestField resolves a field on the request body, looking through up to
// two levels of raw_request wrapping (Gemini CLI captures nest the real
// request under raw_request or raw_request.request).
func requestField(body gjson.Result, field string) gjson.Result {
	if v := body.Get(field); v.Exists() {
		return v
	}
	if v := body.Get("raw_request." + field); v.Exists() {
		return v
	}
	return body.Get("raw_request.request." + field)
}
