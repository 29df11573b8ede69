package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidBody is returned when stored bytes do not decode to a PostBody.
var ErrInvalidBody = errors.New("content is not a post body")

// Validate checks if the post meets all validation requirements
func (p *Post) Validate() error {
	return validate.Struct(p)
}

// Clone returns a copy of the post.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// IsAuthor reports whether addr authored the post. Addresses compare case-insensitively.
func (p *Post) IsAuthor(addr Address) bool {
	return strings.EqualFold(string(p.Author), string(addr))
}

// Validate runs the optional body checks used at the sync client boundary.
func (b *PostBody) Validate() error {
	return validate.Struct(b)
}

// EncodePostBody serializes a body into the JSON document kept in the content store.
func EncodePostBody(b *PostBody) ([]byte, error) {
	if b == nil {
		return nil, errors.New("post body cannot be nil")
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal post body: %w", err)
	}
	return data, nil
}

// DecodePostBody parses a stored document. Anything other than a JSON object is rejected.
func DecodePostBody(data []byte) (*PostBody, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrInvalidBody
	}
	var body PostBody
	if err := json.Unmarshal(trimmed, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return &body, nil
}

// NormalizeAddress lowercases an address so lookups do not depend on checksum casing.
func NormalizeAddress(s string) Address {
	return Address(strings.ToLower(strings.TrimSpace(s)))
}
