package urls

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// normalizePathname canonicalizes a raw pathname: ensures a leading slash,
// collapses redundant slashes, resolves "." and ".." segments, and rejects
// anything that cannot represent a safe app-relative path.
func normalizePathname(pathname string) (string, error) {
	if pathname == "" {
		return "/", nil
	}
	if strings.ContainsRune(pathname, '\\') {
		return "", ErrBackslash
	}
	if strings.ContainsRune(pathname, 0) || strings.Contains(pathname, "%00") {
		return "", ErrNullByte
	}
	if err := validateEscapes(pathname); err != nil {
		return "", err
	}

	if !strings.HasPrefix(pathname, "/") {
		pathname = "/" + pathname
	}

	// Directory-ish inputs ("/a/", "/a/.", "/a/..") keep a trailing slash
	// through resolution.
	trailing := strings.HasSuffix(pathname, "/")
	if !trailing {
		switch last := pathname[strings.LastIndexByte(pathname, '/')+1:]; last {
		case ".", "..":
			trailing = true
		}
	}

	resolved, err := resolveDots(pathname)
	if err != nil {
		return "", err
	}
	if trailing && resolved != "/" {
		resolved += "/"
	}
	return resolved, nil
}

// resolveDots collapses redundant slashes and resolves "." and ".."
// segments. A ".." that would climb above the root is an error rather than
// being silently clamped.
func resolveDots(pathname string) (string, error) {
	segs := strings.Split(pathname, "/")
	out := make([]string, 0, len(segs))
	for _, seg := range segs {
		switch seg {
		case "", ".":
			// collapsed
		case "..":
			if len(out) == 0 {
				return "", ErrEscapesRoot
			}
			out = out[:len(out)-1]
		default:
			out = append(out, seg)
		}
	}
	if len(out) == 0 {
		return "/", nil
	}
	return "/" + strings.Join(out, "/"), nil
}

// validateEscapes checks that every "%" in the input starts a well-formed
// two-digit percent escape.
func validateEscapes(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			continue
		}
		if i+2 >= len(s) || !isHexDigit(s[i+1]) || !isHexDigit(s[i+2]) {
			return fmt.Errorf("%w at offset %d", ErrBadEscape, i)
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

// DecodeSegment percent-decodes a single path segment, typically a captured
// route parameter. Malformed escapes fail with ErrBadEscape.
func DecodeSegment(seg string) (string, error) {
	decoded, err := url.PathUnescape(seg)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrBadEscape, seg)
	}
	return decoded, nil
}

// Join joins path parts into one pathname, collapsing redundant slashes and
// resolving "." and ".." segments. The result is absolute when the first
// part is; a trailing slash on the last part is preserved.
func Join(parts ...string) string {
	joined := path.Join(parts...)
	if joined == "" || joined == "/" {
		return joined
	}
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == "" {
			continue
		}
		if strings.HasSuffix(parts[i], "/") {
			joined += "/"
		}
		break
	}
	return joined
}

// EnsureTrailingSlash returns pathname with exactly one trailing slash.
// It is idempotent and leaves the root "/" unchanged.
func EnsureTrailingSlash(pathname string) string {
	if pathname == "" {
		return "/"
	}
	if strings.HasSuffix(pathname, "/") {
		return pathname
	}
	return pathname + "/"
}

// StripTrailingSlash returns pathname without a trailing slash. It is
// idempotent and leaves the root "/" unchanged.
func StripTrailingSlash(pathname string) string {
	if len(pathname) > 1 && strings.HasSuffix(pathname, "/") {
		return pathname[:len(pathname)-1]
	}
	if pathname == "" {
		return "/"
	}
	return pathname
}
