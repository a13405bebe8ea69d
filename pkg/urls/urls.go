// Package urls parses and normalizes application URLs into descriptors.
//
// A Descriptor is the routing core's view of a URL: an always-absolute
// pathname plus optional search and hash, with the query values and full
// href derived from them. Descriptors are plain values; every function in
// this package is pure.
package urls

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Descriptor is a normalized, immutable representation of an app-relative URL.
//
// Invariants:
//   - Pathname always begins with "/".
//   - Search is "" or begins with "?"; Hash is "" or begins with "#".
//   - Query and Href are always consistent with Pathname/Search/Hash.
type Descriptor struct {
	// Pathname is the normalized path component.
	Pathname string

	// Search is the raw query component including the leading "?", or "".
	Search string

	// Hash is the fragment component including the leading "#", or "".
	Hash string

	// Query holds the parsed Search values.
	Query url.Values

	// Href is Pathname + Search + Hash.
	Href string
}

// URL parsing and normalization errors. All of them unwrap to ErrInvalidURL.
var (
	ErrInvalidURL = errors.New("invalid URL")

	ErrAbsoluteURL = fmt.Errorf("%w: scheme-qualified or protocol-relative", ErrInvalidURL)
	ErrBackslash   = fmt.Errorf("%w: contains backslash", ErrInvalidURL)
	ErrNullByte    = fmt.Errorf("%w: contains null byte", ErrInvalidURL)
	ErrBadEscape   = fmt.Errorf("%w: malformed percent escape", ErrInvalidURL)
	ErrEscapesRoot = fmt.Errorf("%w: path escapes root", ErrInvalidURL)
)

// Parse parses an app-relative URL string ("/path?query#hash") into a
// complete Descriptor.
//
// The pathname is normalized: a leading "/" is ensured, redundant slashes
// are collapsed, and "." / ".." segments are resolved. A trailing slash is
// preserved as given; use EnsureTrailingSlash or StripTrailingSlash to
// adjust it.
//
// Inputs that cannot be normalized fail with an error wrapping ErrInvalidURL:
// scheme-qualified or protocol-relative URLs, backslashes, NUL bytes,
// malformed percent escapes, and ".." escaping the root.
func Parse(input string) (Descriptor, error) {
	// Reject full URLs. Descriptors are app-relative by construction; an
	// origin here is almost always an open-redirect hazard upstream.
	if strings.HasPrefix(input, "//") || hasScheme(input) {
		return Descriptor{}, ErrAbsoluteURL
	}

	pathname, search, hash := Split(input)

	pathname, err := normalizePathname(pathname)
	if err != nil {
		return Descriptor{}, err
	}

	return complete(pathname, search, hash), nil
}

// MustParse is Parse that panics on error. Intended for static route tables
// and tests.
func MustParse(input string) Descriptor {
	d, err := Parse(input)
	if err != nil {
		panic("urls: " + err.Error())
	}
	return d
}

// New builds a Descriptor from already-split components, normalizing each.
// search may be given with or without the leading "?", hash with or without
// the leading "#".
func New(pathname, search, hash string) (Descriptor, error) {
	pathname, err := normalizePathname(pathname)
	if err != nil {
		return Descriptor{}, err
	}
	if search != "" && !strings.HasPrefix(search, "?") {
		search = "?" + search
	}
	if hash != "" && !strings.HasPrefix(hash, "#") {
		hash = "#" + hash
	}
	return complete(pathname, search, hash), nil
}

// Complete fills in the derived fields of a partial Descriptor. A partial
// descriptor may set Query without Search (it is encoded), or Search without
// Query (it is parsed). Pathname is normalized like Parse.
func Complete(d Descriptor) (Descriptor, error) {
	search := d.Search
	if search == "" && len(d.Query) > 0 {
		search = "?" + d.Query.Encode()
	}
	return New(d.Pathname, search, d.Hash)
}

// complete assembles the derived Query and Href fields. pathname must
// already be normalized, search/hash already prefixed.
//
// Query escapes are not validated: the raw search string is authoritative
// and Query carries whatever pairs parse cleanly.
func complete(pathname, search, hash string) Descriptor {
	var query url.Values
	if search != "" {
		query, _ = url.ParseQuery(strings.TrimPrefix(search, "?"))
	}
	return Descriptor{
		Pathname: pathname,
		Search:   search,
		Hash:     hash,
		Query:    query,
		Href:     pathname + search + hash,
	}
}

// Equal reports whether two descriptors identify the same location.
// It compares the normalized pathname, search, and hash.
func Equal(a, b Descriptor) bool {
	return a.Pathname == b.Pathname && a.Search == b.Search && a.Hash == b.Hash
}

// Resolve resolves ref against base, following the usual relative-reference
// rules: "/abs" replaces the path, "?q" and "#h" replace only the search or
// hash, and anything else is joined onto base's directory.
func Resolve(base Descriptor, ref string) (Descriptor, error) {
	switch {
	case ref == "":
		return base, nil
	case strings.HasPrefix(ref, "?"):
		s, h := splitHash(ref)
		return New(base.Pathname, s, h)
	case strings.HasPrefix(ref, "#"):
		return New(base.Pathname, base.Search, ref)
	case strings.HasPrefix(ref, "/"):
		return Parse(ref)
	}

	if strings.HasPrefix(ref, "//") || hasScheme(ref) {
		return Descriptor{}, ErrAbsoluteURL
	}

	refPath, search, hash := Split(ref)

	// A relative path resolves against the base directory: everything up to
	// and including the final "/".
	dir := base.Pathname
	if i := strings.LastIndex(dir, "/"); i >= 0 {
		dir = dir[:i+1]
	}
	pathname, err := normalizePathname(dir + refPath)
	if err != nil {
		return Descriptor{}, err
	}
	return complete(pathname, search, hash), nil
}

// Split breaks a URL string into pathname, search, and hash components.
// The search keeps its leading "?" and the hash its leading "#".
func Split(input string) (pathname, search, hash string) {
	pathname = input
	if i := strings.IndexByte(pathname, '#'); i >= 0 {
		hash = pathname[i:]
		pathname = pathname[:i]
	}
	if i := strings.IndexByte(pathname, '?'); i >= 0 {
		search = pathname[i:]
		pathname = pathname[:i]
	}
	return pathname, search, hash
}

func splitHash(input string) (rest, hash string) {
	if i := strings.IndexByte(input, '#'); i >= 0 {
		return input[:i], input[i:]
	}
	return input, ""
}

// hasScheme reports whether input begins with a URL scheme ("http:", etc.).
func hasScheme(input string) bool {
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case c == ':':
			return i > 0
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			// still a possible scheme
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
			// scheme tail characters
		default:
			return false
		}
	}
	return false
}
