package internal

import (
	"github.com/tidwall/gjson"
)

// normalizedParamFields is the fixed normalized field set. Vendor fields are
// mapped onto it through per-protocol rename tables; anything else lands in
// OtherParams verbatim.
var geminiParamRenames = map[string]string{
	"temperature":      "temperature",
	"maxOutputTokens":  "max_tokens",
	"max_output_tokens": "max_tokens",
	"topP":             "top_p",
	"top_p":            "top_p",
	"topK":             "top_k",
	"top_k":            "top_k",
	"frequencyPenalty": "frequency_penalty",
	"presencePenalty":  "presence_penalty",
	"stopSequences":    "stop_sequences",
	"stop_sequences":   "stop_sequences",
}

var anthropicParamRenames = map[string]string{
	"temperature":          "temperature",
	"max_tokens":           "max_tokens",
	"max_tokens_to_sample": "max_tokens",
	"top_p":                "top_p",
	"top_k":                "top_k",
	"stop_sequences":       "stop_sequences",
}

var openAIParamRenames = map[string]string{
	"temperature":           "temperature",
	"max_tokens":            "max_tokens",
	"max_completion_tokens": "max_tokens",
	"top_p":                 "top_p",
	"frequency_penalty":     "frequency_penalty",
	"presence_penalty":      "presence_penalty",
	"stop":                  "stop_sequences",
	"stop_sequences":        "stop_sequences",
}

// anthropicRequestFields are top-level request fields that are not generation
// parameters and must not be swept into OtherParams when the config location
// is the flattened request body itself.
var nonParamFields = map[string]bool{
	"model":              true,
	"messages":           true,
	"system":             true,
	"contents":           true,
	"tools":              true,
	"functions":          true,
	"tool_choice":        true,
	"stream":             true,
	"metadata":           true,
	"system_instruction": true,
	"systemInstruction":  true,
	"raw_request":        true,
	"request_id":         true,
	"timestamp":          true,
	"url":                true,
	"method":             true,
	"headers":            true,
}

// ExtractParameters normalizes the generation parameters of a request. The
// protocol decides where the config lives: a nested generationConfig object
// for Gemini, the flattened request body for Anthropic and OpenAI-compatible
// protocols. Returns an all-nil structure when no config is found; it never
// fails.
func ExtractParameters(payload []byte, provider, protocol string) GenerationParameters {
	params := GenerationParameters{}
	if len(payload) == 0 || !gjson.ValidBytes(payload) {
		return params
	}
	body := gjson.ParseBytes(payload)

	switch protocol {
	case ProtocolGemini:
		config := requestField(body, "generationConfig")
		if !config.Exists() {
			config = requestField(body, "generation_config")
		}
		if config.IsObject() {
			applyParams(&params, config, geminiParamRenames, false)
		}
	case ProtocolAnthropic:
		applyParams(&params, flattenedRequest(body), anthropicParamRenames, true)
	case ProtocolOpenAICompatible:
		applyParams(&params, flattenedRequest(body), openAIParamRenames, true)
	}

	return params
}

// flattenedRequest returns the request body itself, unwrapping a raw_request
// envelope when the capture nests one.
func flattenedRequest(body gjson.Result) gjson.Result {
	if inner := body.Get("raw_request"); inner.IsObject() {
		return inner
	}
	return body
}

// applyParams walks the config object, mapping renamed fields onto the
// normalized set and preserving everything else in OtherParams. When
// flattened is true, known request envelope fields are skipped instead of
// being treated as unrecognized parameters.
func applyParams(params *GenerationParameters, config gjson.Result, renames map[string]string, flattened bool) {
	config.ForEach(func(key, value gjson.Result) bool {
		name := key.String()

		normalized, known := renames[name]
		if !known {
			if flattened && nonParamFields[name] {
				return true
			}
			if params.OtherParams == nil {
				params.OtherParams = make(map[string]interface{})
			}
			params.OtherParams[name] = value.Value()
			return true
		}

		switch normalized {
		case "temperature":
			f := value.Float()
			params.Temperature = &f
		case "max_tokens":
			n := value.Int()
			params.MaxTokens = &n
		case "top_p":
			f := value.Float()
			params.TopP = &f
		case "top_k":
			n := value.Int()
			params.TopK = &n
		case "frequency_penalty":
			f := value.Float()
			params.FrequencyPenalty = &f
		case "presence_penalty":
			f := value.Float()
			params.PresencePenalty = &f
		case "stop_sequences":
			params.StopSequences = stringSlice(value)
		}
		return true
	})
}

// stringSlice converts a JSON array (or bare string, as OpenAI's stop field
// allows) into a string slice.
func stringSlice(value gjson.Result) []string {
	if value.Type == gjson.String {
		return []string{value.String()}
	}
	var out []string
	value.ForEach(func(_, v gjson.Result) bool {
		out = append(out, v.String())
		return true
	})
	return out
}
