// Package codec encodes the publish manifest.
//
// Both built-in codecs write plain JSON, so a manifest written with one can
// be read with the other. The codec name is recorded in the manifest.
package codec

import (
	"errors"
	"fmt"
)

// ErrUnknown is returned by Lookup for names no codec answers to.
var ErrUnknown = errors.New("codec: unknown codec")

// Codec encodes and decodes manifests. Implementations must be safe for
// concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec Publish uses unless another one is configured.
var Default Codec = GoJSON{}

var builtin = []Codec{GoJSON{}, JSON{}}

// Names lists the built-in codec names, default first.
func Names() []string {
	names := make([]string, len(builtin))
	for i, c := range builtin {
		names[i] = c.Name()
	}
	return names
}

// Lookup returns the built-in codec called name.
func Lookup(name string) (Codec, error) {
	for _, c := range builtin {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (valid: %v)", ErrUnknown, name, Names())
}
