// Package naming turns display names into filesystem-safe path components
// that are unique within one directory.
//
// Resolution is deterministic: a Scope assigns names in the order Claim is
// called, so callers must claim children in document order. A Scope belongs
// to exactly one directory and is not safe for concurrent use.
package naming

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultMaxLength bounds a component in runes, before any extension.
	DefaultMaxLength = 100

	// DefaultPlaceholder replaces characters that cannot appear in a path
	// component on any mainstream filesystem.
	DefaultPlaceholder = "_"

	// DefaultMaxSuffix bounds the _2, _3, ... search.
	DefaultMaxSuffix = 10000

	// MaxNameBytes bounds a resolved name in UTF-8 bytes, independent of
	// MaxLength, so the name plus the longest script extension or sidecar
	// suffix stays within the 255-byte component limit of ext4 and NTFS.
	MaxNameBytes = 255 - len(".server.lua")
)

// ErrUnresolved is returned when the suffix search exceeds its bound.
var ErrUnresolved = errors.New("name collision unresolved")

// Options tune sanitization. Zero fields take their defaults.
type Options struct {
	MaxLength   int
	Placeholder string
	MaxSuffix   int
}

func (o Options) withDefaults() Options {
	if o.MaxLength <= 0 {
		o.MaxLength = DefaultMaxLength
	}
	if o.Placeholder == "" {
		o.Placeholder = DefaultPlaceholder
	}
	if o.MaxSuffix <= 0 {
		o.MaxSuffix = DefaultMaxSuffix
	}
	return o
}

// Validate checks that the options can always produce a legal name.
func (o Options) Validate() error {
	o = o.withDefaults()
	if utf8.RuneCountInString(o.Placeholder) != 1 {
		return fmt.Errorf("placeholder must be a single character, got %q", o.Placeholder)
	}
	if Sanitize(o.Placeholder, Options{Placeholder: "x"}) != o.Placeholder {
		return fmt.Errorf("placeholder %q is itself not allowed in file names", o.Placeholder)
	}
	if o.MaxLength < 8 {
		return fmt.Errorf("max name length %d is too short, need at least 8", o.MaxLength)
	}
	return nil
}

const illegalChars = `<>:"/\|?*`

var deviceNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// Sanitize maps a display name to a legal path component.
//
// Steps, in order:
//  1. NFC normalize; invalid UTF-8 becomes U+FFFD
//  2. path separators, reserved punctuation and control characters become the placeholder
//  3. reserved device names (CON, COM1, ...) get the placeholder appended to their stem
//  4. truncate to MaxLength runes and MaxNameBytes bytes, keeping the prefix
//  5. trailing dots and spaces become the placeholder
//  6. an empty result becomes the placeholder
func Sanitize(name string, opts Options) string {
	opts = opts.withDefaults()

	s := norm.NFC.String(strings.ToValidUTF8(name, string(utf8.RuneError)))

	var b strings.Builder
	for _, r := range s {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(illegalChars, r) {
			b.WriteString(opts.Placeholder)
			continue
		}
		b.WriteRune(r)
	}
	s = b.String()

	stem, rest, _ := strings.Cut(s, ".")
	if deviceNames[strings.ToUpper(strings.TrimRight(stem, " "))] {
		s = stem + opts.Placeholder
		if rest != "" || strings.Contains(name, ".") {
			s += "." + rest
		}
	}

	s = truncate(s, opts.MaxLength, MaxNameBytes)
	s = replaceTrailing(s, opts.Placeholder)
	// A multi-byte placeholder can grow s past the byte bound again. Only
	// placeholders are cut then, so no trailing dot reappears.
	s = truncate(s, opts.MaxLength, MaxNameBytes)

	if s == "" {
		return opts.Placeholder
	}
	return s
}

// truncate keeps the longest prefix of s with at most n runes and at most
// maxBytes bytes, never splitting a rune.
func truncate(s string, n, maxBytes int) string {
	if n <= 0 || maxBytes <= 0 {
		return ""
	}
	i := 0
	for pos, r := range s {
		if i == n || pos+utf8.RuneLen(r) > maxBytes {
			return s[:pos]
		}
		i++
	}
	return s
}

func replaceTrailing(s, placeholder string) string {
	trimmed := strings.TrimRight(s, ". ")
	if len(trimmed) == len(s) {
		return s
	}
	return trimmed + strings.Repeat(placeholder, len(s)-len(trimmed))
}

// Resolution describes how one proposed name was placed.
type Resolution struct {
	// Name is the unique component assigned.
	Name string

	// Sanitized is the name before any collision suffix.
	Sanitized string

	// Suffix is the integer appended on collision, 0 when none was needed.
	Suffix int
}

// Collided reports whether a suffix had to be appended.
func (r Resolution) Collided() bool {
	return r.Suffix > 0
}

// Scope is the claimed-name table of one directory. Comparison is
// case-insensitive (Unicode case folding after NFC).
type Scope struct {
	opts    Options
	fold    cases.Caser
	claimed map[string]string
}

// NewScope creates a table with the given names already taken.
func NewScope(opts Options, reserved ...string) *Scope {
	s := &Scope{
		opts:    opts.withDefaults(),
		fold:    cases.Fold(),
		claimed: map[string]string{},
	}
	s.Reserve(reserved...)
	return s
}

// Reserve marks names as taken without resolving them.
func (s *Scope) Reserve(names ...string) {
	for _, n := range names {
		s.claimed[s.key(n)] = n
	}
}

// Taken reports whether a name is already claimed, ignoring case.
func (s *Scope) Taken(name string) bool {
	_, ok := s.claimed[s.key(name)]
	return ok
}

// Len returns the number of claimed names, reservations included.
func (s *Scope) Len() int {
	return len(s.claimed)
}

func (s *Scope) key(name string) string {
	return s.fold.String(norm.NFC.String(name))
}

// Claim resolves a proposed name. See ClaimWith.
func (s *Scope) Claim(proposed string) (Resolution, error) {
	return s.ClaimWith(proposed, nil)
}

// ClaimWith resolves a proposed name together with companion names derived
// from it (a script's file name and metadata sidecar, for instance). A
// candidate is accepted only when it and all its companions are free; all
// of them are then claimed.
//
// The first free candidate wins: the sanitized name itself, then name_2,
// name_3, ... up to MaxSuffix. The base is shortened when needed so the
// suffixed name still fits MaxLength and MaxNameBytes.
func (s *Scope) ClaimWith(proposed string, companions func(name string) []string) (Resolution, error) {
	base := Sanitize(proposed, s.opts)

	if s.tryClaim(base, companions) {
		return Resolution{Name: base, Sanitized: base}, nil
	}
	for n := 2; n <= s.opts.MaxSuffix; n++ {
		suffix := "_" + strconv.Itoa(n)
		candidate := truncate(base, s.opts.MaxLength-utf8.RuneCountInString(suffix), MaxNameBytes-len(suffix)) + suffix
		if s.tryClaim(candidate, companions) {
			return Resolution{Name: candidate, Sanitized: base, Suffix: n}, nil
		}
	}
	return Resolution{Sanitized: base}, fmt.Errorf("%w: %q still collides after suffix _%d", ErrUnresolved, proposed, s.opts.MaxSuffix)
}

func (s *Scope) tryClaim(candidate string, companions func(string) []string) bool {
	names := []string{candidate}
	if companions != nil {
		names = append(names, companions(candidate)...)
	}
	for _, n := range names {
		if s.Taken(n) {
			return false
		}
	}
	s.Reserve(names...)
	return true
}
