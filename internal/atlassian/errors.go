package atlassian

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// APIError is a non-2xx answer from the remote API.
type APIError struct {
	Product string
	Status  int
	Message string
	Hint    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s API error (%d): %s", e.Product, e.Status, e.Message)
	if e.Hint != "" {
		msg += "\n" + e.Hint
	}
	return msg
}

const maxErrorBody = 500

// summarizeErrorBody extracts Jira ({"errorMessages","errors"}) and Confluence
// ({"message"}) error payloads, falling back to the trimmed raw body.
func summarizeErrorBody(b []byte) string {
	var payload struct {
		ErrorMessages []string          `json:"errorMessages"`
		Errors        map[string]string `json:"errors"`
		Message       string            `json:"message"`
	}
	if err := json.Unmarshal(b, &payload); err == nil {
		var parts []string
		parts = append(parts, payload.ErrorMessages...)
		keys := make([]string, 0, len(payload.Errors))
		for k := range payload.Errors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, k+": "+payload.Errors[k])
		}
		if payload.Message != "" {
			parts = append(parts, payload.Message)
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}

	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}

func authHint(product string, status int, body []byte) string {
	prefix := strings.ToUpper(product)
	switch status {
	case http.StatusUnauthorized:
		return fmt.Sprintf("%s API returned 401. Check %s_USERNAME and %s_API_TOKEN.", product, prefix, prefix)
	case http.StatusForbidden:
		return fmt.Sprintf("%s API returned 403. Likely missing permissions for this user.", product)
	case http.StatusNotFound:
		return fmt.Sprintf("%s API returned 404. The item may not exist or your user lacks access (permission issues are often masked as 404).", product)
	case http.StatusTooManyRequests:
		return fmt.Sprintf("%s API returned 429 (rate limited). Wait before calling again.", product)
	default:
		if bytes.Contains(bytes.ToLower(body), []byte("captcha")) {
			return fmt.Sprintf("%s reported CAPTCHA/authentication denial; interactive login may be required to clear it.", product)
		}
		return ""
	}
}
