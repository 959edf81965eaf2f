package utils

import (
	"net/url"
	"os"
	"strings"
)

// PublicObjectURL builds an unsigned URL for objectKey from
// STORAGE_ACCESS_BASE_URL, or from GCS_URL and GCS_BUCKET. It reports false
// when neither is configured.
//
// STORAGE_ACCESS_BASE_URL may contain "{objectKey}"; with a query string the
// key is escaped.
func PublicObjectURL(objectKey string) (string, bool) {
	base := strings.TrimSpace(os.Getenv("STORAGE_ACCESS_BASE_URL"))
	if base != "" {
		if strings.Contains(base, "{objectKey}") {
			escaped := objectKey
			if strings.Contains(base, "?") {
				escaped = url.QueryEscape(objectKey)
			}
			return strings.ReplaceAll(base, "{objectKey}", escaped), true
		}
		if strings.Contains(base, "?") {
			return base + url.QueryEscape(objectKey), true
		}
		return strings.TrimRight(base, "/") + "/" + objectKey, true
	}

	gcsURL := strings.TrimSpace(os.Getenv("GCS_URL"))
	gcsBucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if gcsURL != "" && gcsBucket != "" {
		return "https://" + gcsURL + "/" + gcsBucket + "/" + objectKey, true
	}
	return "", false
}
