package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// IDPrefix starts every model identifier.
	IDPrefix = "model_"
	// DefaultObjectSuffix names objects whose filename sanitizes to nothing.
	DefaultObjectSuffix = "model"

	maxSuffixLen = 64
)

var ErrInvalidModelID = errors.New("invalid model id")

// ModelID is the parsed form of "model_<timestamp>_<suffix>".
type ModelID struct {
	Timestamp int64
	Suffix    string
}

// BuildID returns the identifier for an object uploaded at ts (unix ms).
func BuildID(ts int64, suffix string) string {
	return IDPrefix + ObjectName(ts, suffix)
}

// ObjectName is the stem of the remote object: "<timestamp>_<suffix>".
func ObjectName(ts int64, suffix string) string {
	return strconv.FormatInt(ts, 10) + "_" + suffix
}

// ParseID splits an identifier into its embedded timestamp and suffix.
// The suffix may itself contain underscores.
func ParseID(id string) (ModelID, error) {
	rest, ok := strings.CutPrefix(id, IDPrefix)
	if !ok {
		return ModelID{}, fmt.Errorf("%w: missing %q prefix", ErrInvalidModelID, IDPrefix)
	}

	tsPart, suffix, ok := strings.Cut(rest, "_")
	if !ok || suffix == "" {
		return ModelID{}, fmt.Errorf("%w: missing suffix", ErrInvalidModelID)
	}

	for _, r := range tsPart {
		if r < '0' || r > '9' {
			return ModelID{}, fmt.Errorf("%w: timestamp %q is not numeric", ErrInvalidModelID, tsPart)
		}
	}
	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil || ts <= 0 {
		return ModelID{}, fmt.Errorf("%w: timestamp %q out of range", ErrInvalidModelID, tsPart)
	}

	return ModelID{Timestamp: ts, Suffix: suffix}, nil
}

// SanitizeName derives an object suffix from a user-supplied filename.
func SanitizeName(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	lastUnderscore := false
	for _, r := range base {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-'
		if ok {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	name := strings.Trim(b.String(), "_-")
	if len(name) > maxSuffixLen {
		name = strings.TrimRight(name[:maxSuffixLen], "_-")
	}
	if name == "" || name == "." {
		return DefaultObjectSuffix
	}
	return name
}
