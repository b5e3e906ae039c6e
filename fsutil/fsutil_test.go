package fsutil

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, WriteFile(filepath.Join(src, "img", "logo.svg"), []byte("<svg/>")))
	require.NoError(t, WriteFile(filepath.Join(src, "robots.txt"), []byte("User-agent: *")))

	dst := filepath.Join(t.TempDir(), "assets")
	copied, err := CopyTree(src, dst)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"img/logo.svg", "robots.txt"}, copied)

	data, err := os.ReadFile(filepath.Join(dst, "img", "logo.svg"))
	require.NoError(t, err)
	require.Equal(t, "<svg/>", string(data))
}

func TestCopyTreeMissingSource(t *testing.T) {
	copied, err := CopyTree(filepath.Join(t.TempDir(), "nope"), t.TempDir())
	require.NoError(t, err)
	require.Empty(t, copied)
}

func TestPrecompress(t *testing.T) {
	dir := t.TempDir()
	page := strings.Repeat("<p>hello</p>", 200)
	require.NoError(t, WriteFile(filepath.Join(dir, "about", "index.html"), []byte(page)))
	require.NoError(t, WriteFile(filepath.Join(dir, "tiny.css"), []byte("a{}")))
	require.NoError(t, WriteFile(filepath.Join(dir, "logo.png"), []byte(strings.Repeat("x", 1000))))

	created, err := Precompress(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"about/index.html.gz"}, created)

	raw, err := os.ReadFile(filepath.Join(dir, "about", "index.html.gz"))
	require.NoError(t, err)
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Equal(t, page, string(plain))
}

func TestFingerprintChangesOnEdit(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.js")
	require.NoError(t, WriteFile(target, []byte("one")))

	first, err := Fingerprint(dir, filepath.Join(dir, "missing"))
	require.NoError(t, err)
	same, err := Fingerprint(dir)
	require.NoError(t, err)
	require.Equal(t, first, same)

	require.NoError(t, os.Chtimes(target, time.Now().Add(time.Minute), time.Now().Add(time.Minute)))
	touched, err := Fingerprint(dir)
	require.NoError(t, err)
	require.NotEqual(t, first, touched)

	require.NoError(t, WriteFile(filepath.Join(dir, "b.js"), []byte("two")))
	added, err := Fingerprint(dir)
	require.NoError(t, err)
	require.NotEqual(t, touched, added)
}
