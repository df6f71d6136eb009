package httpx

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

// WriteJSON writes v as JSON with the given status and no-store caching.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache marks the response as uncacheable. Anything carrying tokens or
// account data goes through here.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// maxBodyBytes bounds request bodies read by ReadValues.
const maxBodyBytes = 1 << 20

// ReadValues reads the request parameters from either a form encoded body or
// a flat JSON object. Browser forms post the former, SDK account calls the
// latter, and handlers should not have to care which. JSON values that are
// not strings are formatted with %v.
func ReadValues(r *http.Request) (url.Values, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if ct != ContentTypeJSON {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		return r.Form, nil
	}

	var raw map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	out := r.URL.Query()
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			out.Set(k, val)
		default:
			out.Set(k, fmt.Sprintf("%v", val))
		}
	}
	return out, nil
}
