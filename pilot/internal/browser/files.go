package browser

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned when a download name escapes the download directory.
var ErrPathTraversal = errors.New("browser: path traversal detected")

// EncodeDataURL wraps raw bytes as a base64 data URL.
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL returns the payload of a base64 data URL.
func DecodeDataURL(u string) (mime string, data []byte, err error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return "", nil, fmt.Errorf("browser: not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("browser: malformed data URL")
	}
	mime, isB64 := strings.CutSuffix(meta, ";base64")
	if !isB64 {
		return mime, []byte(payload), nil
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("browser: decode data URL: %w", err)
	}
	return mime, data, nil
}

// safeJoin joins name under dir. name must be a plain file name: no path
// separators, not "." or "..".
func safeJoin(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", ErrPathTraversal
	}
	base := filepath.Clean(dir)
	p := filepath.Join(base, filepath.Clean("/"+name))
	if !strings.HasPrefix(p, base+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return p, nil
}

// writeUnique writes data to path, or to "name (n).ext" for the first n
// whose file does not exist yet, and returns the path written. Files are
// created with O_EXCL so concurrent writers never share a name.
func writeUnique(path string, data []byte) (string, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	candidate := path
	for n := 1; ; n++ {
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		switch {
		case errors.Is(err, os.ErrExist):
			candidate = fmt.Sprintf("%s (%d)%s", stem, n, ext)
			continue
		case err != nil:
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", err
		}
		return candidate, f.Close()
	}
}
