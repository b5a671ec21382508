// Package common provides shared HTTP helpers for the API handlers.
package common

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"
)

// GetAndValidateURLParam extracts and decodes a URL parameter. The value
// must not be empty, must not start or end with whitespace and must not
// contain control characters.
func GetAndValidateURLParam(r *http.Request, paramName string) (string, error) {
	decoded, err := url.PathUnescape(chi.URLParam(r, paramName))
	if err != nil {
		return "", fmt.Errorf("invalid URL encoding in %s", paramName)
	}

	if strings.TrimSpace(decoded) == "" {
		return "", fmt.Errorf("%s cannot be empty", paramName)
	}
	if strings.TrimSpace(decoded) != decoded {
		return "", fmt.Errorf("%s cannot start or end with whitespace", paramName)
	}
	if strings.IndexFunc(decoded, unicode.IsControl) >= 0 {
		return "", fmt.Errorf("%s cannot contain control characters", paramName)
	}

	return decoded, nil
}
