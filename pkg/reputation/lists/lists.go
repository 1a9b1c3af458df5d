// Package lists loads host lists that are refreshed out of band, such as
// the known URL shortener list consulted by the signal extractor.
package lists

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
)

//go:embed shorteners.txt
var defaultShorteners []byte

const reputableMarker = "reputable"

// File is a shortener list read from a flat file. Reload swaps the contents
// atomically, so lookups never block. It is safe for concurrent use.
type File struct {
	path    string
	entries atomic.Pointer[map[string]bool]
}

// Parse reads a list: one host per line, an optional second field
// "reputable", blank lines and lines starting with "#" ignored.
func Parse(r io.Reader) (map[string]bool, error) {
	out := map[string]bool{}

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		host := strings.TrimSuffix(strings.ToLower(fields[0]), ".")
		switch {
		case len(fields) == 1:
			if _, ok := out[host]; !ok {
				out[host] = false
			}
		case len(fields) == 2 && strings.EqualFold(fields[1], reputableMarker):
			out[host] = true
		default:
			return nil, fmt.Errorf("line %d: unexpected %q", line, text)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("could not read list: %w", err)
	}

	return out, nil
}

// Default returns the list built into the binary.
func Default() *File {
	entries, err := Parse(bytes.NewReader(defaultShorteners))
	if err != nil {
		panic(fmt.Sprintf("embedded shortener list: %v", err))
	}

	f := &File{}
	f.entries.Store(&entries)

	return f
}

// Load reads the list at path. An empty path returns Default.
func Load(path string) (*File, error) {
	if path == "" {
		return Default(), nil
	}

	f := &File{path: path}
	if err := f.Reload(); err != nil {
		return nil, err
	}

	return f, nil
}

// Reload re-reads the file. On error the previous contents stay in place.
// Lists without a path are not reloaded.
func (f *File) Reload() error {
	if f.path == "" {
		return nil
	}

	fh, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("could not open shortener list: %w", err)
	}
	defer func() {
		_ = fh.Close()
	}()

	entries, err := Parse(fh)
	if err != nil {
		return fmt.Errorf("could not parse %s: %w", f.path, err)
	}
	f.entries.Store(&entries)

	return nil
}

// Len returns the number of listed hosts.
func (f *File) Len() int {
	return len(*f.entries.Load())
}

// Lookup reports whether host or one of its parent domains is listed, and
// whether that entry is marked reputable.
func (f *File) Lookup(host string) (bool, bool) {
	entries := *f.entries.Load()

	host = strings.TrimSuffix(strings.ToLower(host), ".")
	host = strings.TrimPrefix(host, "www.")
	for host != "" {
		if reputable, ok := entries[host]; ok {
			return true, reputable
		}

		i := strings.IndexByte(host, '.')
		if i < 0 {
			break
		}
		host = host[i+1:]
	}

	return false, false
}
