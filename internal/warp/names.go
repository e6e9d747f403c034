package warp

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// SpawnKey is the directory key of the network spawn point.
const SpawnKey = "_spawn"

// NormalizeName returns the directory key for a warp name. Names are matched
// case-insensitively, so "Lobby" and "lobby" are the same warp. The key
// is the NFC form of the name, case folded.
func NormalizeName(name string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}

// reserved reports whether a key belongs to the directory itself rather than
// to a user warp.
func reserved(key string) bool {
	return strings.HasPrefix(key, "_")
}
