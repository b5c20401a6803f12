package types

import "strings"

// ImageRef is an opaque reference to a captured or cropped image.
// In practice it is a data URL ("data:image/webp;base64,....") or a plain
// base64 payload; consumers treat it as opaque and only the provider
// boundary decodes it.
type ImageRef string

// IsZero reports whether the reference is empty.
func (r ImageRef) IsZero() bool {
	return strings.TrimSpace(string(r)) == ""
}

// Base64Data returns the base64 payload with any data-URL prefix stripped.
func (r ImageRef) Base64Data() string {
	s := strings.TrimSpace(string(r))
	if idx := strings.IndexByte(s, ','); idx >= 0 && strings.HasPrefix(s, "data:") {
		return s[idx+1:]
	}
	return s
}

// MediaType returns the media type declared by a data-URL reference,
// or "image/webp" when the reference carries none.
func (r ImageRef) MediaType() string {
	s := strings.TrimSpace(string(r))
	if !strings.HasPrefix(s, "data:") {
		return "image/webp"
	}
	rest := s[len("data:"):]
	if idx := strings.IndexByte(rest, ';'); idx > 0 {
		return rest[:idx]
	}
	if idx := strings.IndexByte(rest, ','); idx > 0 {
		return rest[:idx]
	}
	return "image/webp"
}
