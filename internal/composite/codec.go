// Package composite builds the multi-part credential the host backend receives
// in place of a plain password.
//
// The format is write-only: fragments are joined with a literal "+" and the
// host interprets the result. Both the login flow and the roster page use this
// package so their output is byte-for-byte compatible.
package composite

import (
	"fmt"
	"strings"
)

const Delimiter = "+"

// Kind names an identity fragment that can precede the access key.
type Kind string

const (
	KindIdentityID    Kind = "identityId"
	KindIdentityEmail Kind = "identityEmail"
)

func (k Kind) Valid() bool {
	return k == KindIdentityID || k == KindIdentityEmail
}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown fragment kind: %q", s)
	}
	return k, nil
}

// ParseKinds converts configured fragment names, keeping their order.
func ParseKinds(names []string) ([]Kind, error) {
	kinds := make([]Kind, 0, len(names))
	seen := make(map[Kind]bool, len(names))
	for _, name := range names {
		k, err := ParseKind(name)
		if err != nil {
			return nil, err
		}
		if seen[k] {
			return nil, fmt.Errorf("duplicate fragment kind: %q", name)
		}
		seen[k] = true
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Values holds fragment values keyed by kind. Missing kinds are empty.
type Values map[Kind]string

// Encode drops empty fragments, appends the access key and joins the rest.
// It never fails; all-empty input yields "".
func Encode(fragments []string, accessKey string) string {
	parts := make([]string, 0, len(fragments)+1)
	for _, f := range fragments {
		if f != "" {
			parts = append(parts, f)
		}
	}
	if accessKey != "" {
		parts = append(parts, accessKey)
	}
	return strings.Join(parts, Delimiter)
}

// Compose encodes values in the order given by kinds, access key last.
func Compose(kinds []Kind, values Values, accessKey string) string {
	fragments := make([]string, 0, len(kinds))
	for _, k := range kinds {
		fragments = append(fragments, values[k])
	}
	return Encode(fragments, accessKey)
}
