package lists_test

import (
	"os"
	"path/filepath"
	"qrshield/pkg/reputation/lists"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	entries, err := lists.Parse(strings.NewReader(`
# comment
bit.ly reputable
Tiny.CC.
tiny.cc

`))
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"bit.ly": true, "tiny.cc": false}, entries)

	_, err = lists.Parse(strings.NewReader("bit.ly trusted"))
	require.ErrorContains(t, err, "line 1")
}

func TestDefault_Lookup(t *testing.T) {
	l := lists.Default()
	require.Positive(t, l.Len())

	known, reputable := l.Lookup("bit.ly")
	require.True(t, known)
	require.True(t, reputable)

	known, reputable = l.Lookup("WWW.TinyURL.com.")
	require.True(t, known)
	require.False(t, reputable)

	known, _ = l.Lookup("preview.tinyurl.com")
	require.True(t, known, "subdomains of listed hosts match")

	known, _ = l.Lookup("example.com")
	require.False(t, known)

	known, _ = l.Lookup("notbit.ly")
	require.False(t, known)
}

func TestLoad_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shorteners.txt")
	require.NoError(t, os.WriteFile(path, []byte("sho.rt\n"), 0o600))

	l, err := lists.Load(path)
	require.NoError(t, err)
	known, reputable := l.Lookup("sho.rt")
	require.True(t, known)
	require.False(t, reputable)

	require.NoError(t, os.WriteFile(path, []byte("sho.rt reputable\nnew.ly\n"), 0o600))
	require.NoError(t, l.Reload())
	require.Equal(t, 2, l.Len())
	known, reputable = l.Lookup("sho.rt")
	require.True(t, known)
	require.True(t, reputable)

	require.NoError(t, os.WriteFile(path, []byte("bad line here\n"), 0o600))
	require.Error(t, l.Reload())
	require.Equal(t, 2, l.Len(), "previous contents survive a failed reload")

	_, err = lists.Load(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}
