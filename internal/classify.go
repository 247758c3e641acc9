package internal

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Error taxonomy buckets
const (
	ErrorInvalidRequest = "invalid_request"
	ErrorAuth           = "auth_error"
	ErrorNotFound       = "not_found"
	ErrorRateLimit      = "rate_limit"
	ErrorServer         = "server_error"
	ErrorTimeout        = "timeout"
	ErrorContentFilter  = "content_filter"
	ErrorClient         = "client_error"
	ErrorUnknown        = "unknown_error"
)

// ErrorDetail is the classifier's verdict on a failed response.
type ErrorDetail struct {
	Type       string
	Message    string
	Code       string
	RetryAfter *int64
}

// statusErrorTypes is the coarse status-code table consulted first.
var statusErrorTypes = map[int]string{
	400: ErrorInvalidRequest,
	401: ErrorAuth,
	403: ErrorAuth,
	404: ErrorNotFound,
	429: ErrorRateLimit,
	500: ErrorServer,
	502: ErrorServer,
	503: ErrorServer,
	504: ErrorTimeout,
}

// errorKeywords maps taxonomy buckets to case-insensitive substrings of the
// provider's error code. Checked in this order, first match wins; a hit
// refines or overrides the status-derived type.
var errorKeywords = []struct {
	errorType string
	keywords  []string
}{
	{ErrorRateLimit, []string{"rate_limit", "ratelimit", "resource_exhausted", "quota", "too_many_requests", "overloaded"}},
	{ErrorAuth, []string{"auth", "unauthenticated", "unauthorized", "permission_denied", "forbidden", "api_key", "invalid_key"}},
	{ErrorContentFilter, []string{"content_filter", "content_policy", "safety", "blocked", "prohibited"}},
	{ErrorInvalidRequest, []string{"invalid_request", "invalid_argument", "validation", "bad_request", "malformed", "failed_precondition"}},
	{ErrorServer, []string{"internal", "server_error", "unavailable", "backend"}},
	{ErrorTimeout, []string{"timeout", "deadline_exceeded", "timed_out"}},
}

// ClassifyError assigns an error taxonomy to a failed response. A 200 status
// means no error and a nil result. For anything else the result always has a
// non-empty Type: status table first, provider error envelope next, keyword
// refinement over the error code, then a status-range bucket. It never
// fails.
func ClassifyError(payload []byte, statusCode int, provider string) *ErrorDetail {
	if statusCode == 200 {
		return nil
	}

	detail := &ErrorDetail{
		Type: statusErrorTypes[statusCode],
	}

	if len(payload) > 0 && gjson.ValidBytes(payload) {
		body := responseBody(gjson.ParseBytes(payload))
		extractErrorEnvelope(detail, body, provider)
	}

	if detail.Code != "" {
		if refined := matchErrorKeywords(detail.Code); refined != "" {
			detail.Type = refined
		}
	}

	if detail.Type == "" {
		switch {
		case statusCode >= 400 && statusCode < 500:
			detail.Type = ErrorClient
		case statusCode >= 500 && statusCode < 600:
			detail.Type = ErrorServer
		default:
			detail.Type = ErrorUnknown
		}
	}

	return detail
}

// extractErrorEnvelope pulls provider-specific error detail out of the
// response body. Gemini and Vertex use the Google error envelope with a
// status string and optional retryDelay; Anthropic wraps the error under a
// type=error envelope; OpenAI and Azure use error.message/code/type.
func extractErrorEnvelope(detail *ErrorDetail, body gjson.Result, provider string) {
	errObj := body.Get("error")
	if !errObj.Exists() {
		return
	}

	detail.Message = errObj.Get("message").String()

	switch provider {
	case ProviderGemini, ProviderVertex:
		if status := errObj.Get("status"); status.Exists() {
			detail.Code = status.String()
		} else if code := errObj.Get("code"); code.Exists() {
			detail.Code = code.String()
		}
		detail.RetryAfter = googleRetryDelay(errObj)
	case ProviderAnthropic:
		detail.Code = errObj.Get("type").String()
	default:
		if code := errObj.Get("code"); code.Exists() {
			detail.Code = code.String()
		} else {
			detail.Code = errObj.Get("type").String()
		}
	}
}

// googleRetryDelay parses the RetryInfo detail (e.g. retryDelay: "60s") into
// integer seconds.
func googleRetryDelay(errObj gjson.Result) *int64 {
	delay := errObj.Get("details.#.retryDelay|0")
	if !delay.Exists() {
		delay = errObj.Get("retryDelay")
	}
	if !delay.Exists() {
		return nil
	}

	raw := delay.String()
	if d, err := time.ParseDuration(raw); err == nil {
		secs := int64(d.Seconds())
		return &secs
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return &secs
	}
	return nil
}

func matchErrorKeywords(code string) string {
	lowered := strings.ToLower(code)
	for _, entry := range errorKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lowered, kw) {
				return entry.errorType
			}
		}
	}
	return ""
}
