package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PhotoKind tags the variant held by a PhotoReference.
type PhotoKind string

const (
	PhotoKindNone     PhotoKind = "none"
	PhotoKindURL      PhotoKind = "url"
	PhotoKindEmbedded PhotoKind = "embedded"
)

// PhotoReference points at an image either by URL or as an embedded
// (base64 or data URI) token. A reference of kind none carries no value.
type PhotoReference struct {
	Kind  PhotoKind `json:"kind"`
	Value string    `json:"value,omitempty"`
}

func NoPhoto() PhotoReference {
	return PhotoReference{Kind: PhotoKindNone}
}

// PhotoFromURL returns a URL reference, or none for a blank URL.
func PhotoFromURL(u string) PhotoReference {
	u = strings.TrimSpace(u)
	if u == "" {
		return NoPhoto()
	}
	return PhotoReference{Kind: PhotoKindURL, Value: u}
}

// PhotoFromEmbedded returns an embedded reference, or none for a blank token.
func PhotoFromEmbedded(token string) PhotoReference {
	token = strings.TrimSpace(token)
	if token == "" {
		return NoPhoto()
	}
	return PhotoReference{Kind: PhotoKindEmbedded, Value: token}
}

// ParsePhotoReference classifies a raw string: data URIs are embedded tokens,
// anything else non-blank is a URL.
func ParsePhotoReference(s string) PhotoReference {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "data:") {
		return PhotoFromEmbedded(s)
	}
	return PhotoFromURL(s)
}

func (p PhotoReference) IsNone() bool {
	return p.Kind == "" || p.Kind == PhotoKindNone || p.Value == ""
}

// Key identifies the reference for caching.
func (p PhotoReference) Key() string {
	sum := sha256.Sum256([]byte(string(p.Kind) + "|" + p.Value))
	return hex.EncodeToString(sum[:])
}

// UnmarshalJSON accepts the tagged object form and, for convenience, a bare string.
func (p *PhotoReference) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*p = ParsePhotoReference(raw)
		return nil
	}

	type plain PhotoReference
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("invalid photo reference: %w", err)
	}

	switch decoded.Kind {
	case PhotoKindURL:
		*p = PhotoFromURL(decoded.Value)
	case PhotoKindEmbedded:
		*p = PhotoFromEmbedded(decoded.Value)
	case PhotoKindNone, "":
		*p = NoPhoto()
	default:
		return fmt.Errorf("invalid photo reference kind %q", decoded.Kind)
	}
	return nil
}

// CachedPhoto is a resolved image stored so a reference is only resolved once.
type CachedPhoto struct {
	Key        string    `gorm:"column:cache_key;primaryKey;size:64" json:"key"`
	SourceKind PhotoKind `gorm:"size:16" json:"source_kind"`
	MIMEType   string    `gorm:"size:64" json:"mime_type"`
	Data       []byte    `json:"-"`
	ResolvedAt time.Time `json:"resolved_at"`
}
