package tracking

import (
	"encoding/json"
	"strings"
)

// Payload field names of a fulfillment object.
const (
	fieldName         = "name"
	fieldOrderName    = "order_name"
	fieldTrackingURLs = "tracking_urls"
	fieldTrackingURL  = "tracking_url"
)

// OrderLabel returns the raw order label of the fulfillment. The "name" field
// is preferred, "order_name" is the fallback.
func (p Payload) OrderLabel() (string, bool) {
	for _, field := range []string{fieldName, fieldOrderName} {
		if label, ok := p.stringField(field); ok {
			return label, true
		}
	}
	return "", false
}

// TrackingURL returns the tracking URL of the fulfillment. The first element
// of "tracking_urls" wins over the singular "tracking_url".
func (p Payload) TrackingURL() (string, bool) {
	if raw, ok := p[fieldTrackingURLs]; ok {
		var urls []json.RawMessage
		if err := json.Unmarshal(raw, &urls); err == nil && len(urls) > 0 {
			if url, ok := decodeString(urls[0]); ok {
				return url, true
			}
		}
	}
	return p.stringField(fieldTrackingURL)
}

func (p Payload) stringField(field string) (string, bool) {
	raw, ok := p[field]
	if !ok {
		return "", false
	}
	return decodeString(raw)
}

// decodeString decodes raw as a JSON string. null, non-strings and blank
// strings count as absent.
func decodeString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
