package storage

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/pixil98/go-errors"
)

const assetVersion = 1

type ValidatingSpec interface {
	Validate() error
}

// Asset is the envelope every stored record is written in, regardless of backend.
type Asset[T ValidatingSpec] struct {
	Version    uint   `json:"version" yaml:"version"`
	Identifier string `json:"id" yaml:"id"`
	Spec       T      `json:"spec" yaml:"spec"`
}

func (a *Asset[T]) Id() string {
	return a.Identifier
}

func (a *Asset[T]) Validate() error {
	el := errors.NewErrorList()

	if a.Version == 0 {
		el.Add(fmt.Errorf("version must be set"))
	}

	if a.Identifier == "" {
		el.Add(fmt.Errorf("id must be set"))
	}

	if strings.ContainsAny(a.Identifier, "\x00\n\r") {
		el.Add(fmt.Errorf("id must not contain control characters"))
	}

	if isNil(a.Spec) {
		el.Add(fmt.Errorf("spec must be set"))
	} else {
		el.Add(a.Spec.Validate())
	}

	return el.Err()
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func newAsset[T ValidatingSpec](id string, spec T) *Asset[T] {
	return &Asset[T]{
		Version:    assetVersion,
		Identifier: id,
		Spec:       spec,
	}
}

// EscapeKey maps an arbitrary identifier onto the character set that is safe
// for both file names and KV keys. Letters, digits, '-' and '_' pass through,
// every other byte becomes "=XX".
func EscapeKey(id string) string {
	var b strings.Builder
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "=%02X", c)
		}
	}
	return b.String()
}

// UnescapeKey reverses EscapeKey.
func UnescapeKey(key string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c != '=' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(key) {
			return "", fmt.Errorf("truncated escape in key %q", key)
		}
		v, err := strconv.ParseUint(key[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("invalid escape in key %q: %w", key, err)
		}
		b.WriteByte(byte(v))
		i += 2
	}
	return b.String(), nil
}
