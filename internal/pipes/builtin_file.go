package pipes

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"geese/internal/logging"
)

// blockedPathPatterns reject system locations and shell metacharacters.
// Traversal (..) and absolute paths are allowed; this is a blocklist, not
// a sandbox.
var blockedPathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^/etc(/|$)`),
	regexp.MustCompile(`^/sys(/|$)`),
	regexp.MustCompile(`^/proc(/|$)`),
	regexp.MustCompile(`(?i)^[a-z]:[\\/]windows([\\/]|$)`),
	regexp.MustCompile(`(?i)^[a-z]:[\\/]program files( \(x86\))?([\\/]|$)`),
	regexp.MustCompile(`(?i)[\\/]system32([\\/]|$)`),
	regexp.MustCompile("[;&|`$<>]"),
}

// validatePath checks a resolved path against the blocklist.
func validatePath(path string) error {
	for _, re := range blockedPathPatterns {
		if re.MatchString(path) {
			return fmt.Errorf("%w: %s matches blocked pattern %s", ErrPathRejected, path, re.String())
		}
	}
	return nil
}

// resolvePath interprets value as a path relative to the context's file
// directory when one is set and the path is not absolute. It returns the
// path as written and the cleaned absolute path.
func resolvePath(value any, ctx Context) (raw, abs string, err error) {
	raw = strings.TrimSpace(stringOf(value))
	if raw == "" {
		return "", "", fmt.Errorf("%w: readFile requires a path value", ErrContractViolation)
	}
	path := raw
	if dir := ctx.FileDir(); dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	abs, err = filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s: %v", ErrPathRejected, path, err)
	}
	return raw, abs, nil
}

// readFile is registered as both readFile and loadFile. The limiter is
// consulted before any filesystem access and never waited on.
func (r *Registry) readFile(value any, args []string, ctx Context) (any, error) {
	raw, path, err := resolvePath(value, ctx)
	if err != nil {
		return nil, err
	}

	limiter := r.RateLimiter()
	if !limiter.TryAcquire() {
		logging.FilesWarn("readFile rate limited: %s", path)
		return nil, fmt.Errorf("%w: at most %v reads per second (path %s)", ErrRateLimited, limiter.MaxPerSecond(), path)
	}

	for _, candidate := range []string{raw, path} {
		if err := validatePath(candidate); err != nil {
			logging.FilesWarn("readFile rejected: %v", err)
			return nil, err
		}
	}

	encoding := strings.ToLower(arg(args, 0, "utf8"))
	decode, err := decoderFor(encoding)
	if err != nil {
		return nil, err
	}

	logging.FilesDebug("readFile: path=%s encoding=%s", path, encoding)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	content, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s as %s: %v", ErrParse, path, encoding, err)
	}
	logging.Files("readFile completed: %s (%d bytes)", path, len(data))
	return content, nil
}

// decoderFor maps the encoding names file operations accept.
func decoderFor(encoding string) (func([]byte) (string, error), error) {
	switch encoding {
	case "utf8", "utf-8":
		return func(b []byte) (string, error) { return string(b), nil }, nil
	case "ascii":
		return func(b []byte) (string, error) {
			out := make([]byte, len(b))
			for i, c := range b {
				out[i] = c & 0x7f
			}
			return string(out), nil
		}, nil
	case "latin1", "binary":
		return func(b []byte) (string, error) {
			return charmap.ISO8859_1.NewDecoder().String(string(b))
		}, nil
	case "base64":
		return func(b []byte) (string, error) { return base64.StdEncoding.EncodeToString(b), nil }, nil
	case "hex":
		return func(b []byte) (string, error) { return hex.EncodeToString(b), nil }, nil
	}
	return nil, fmt.Errorf("%w: readFile: unknown encoding %q", ErrContractViolation, encoding)
}
