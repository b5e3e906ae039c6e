package fsutil

import (
	"bytes"
	"errors"
	"hash/fnv"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// CompressibleExts lists output types worth shipping with a .gz sibling.
var CompressibleExts = []string{".html", ".css", ".js", ".json", ".svg", ".xml", ".map", ".txt"}

// WriteFile writes data to dst creating missing directories.
func WriteFile(dst string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// CopyFile copies a file from src to dst creating missing directories.
func CopyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}
	return dstFile.Sync()
}

// CopyTree copies a directory tree to dst and returns the copied files relative to dst.
// A missing src is not an error.
func CopyTree(src, dst string) ([]string, error) {
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	var copied []string
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			return os.MkdirAll(target, 0o755)
		}
		if err := CopyFile(path, target); err != nil {
			return err
		}
		copied = append(copied, filepath.ToSlash(rel))
		return nil
	})
	return copied, err
}

// Precompress writes a best-compression .gz sibling for every compressible file under dir
// and returns the created files relative to dir.
func Precompress(dir string) ([]string, error) {
	var created []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !compressible(path) {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return err
		}
		if _, err := zw.Write(raw); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		if buf.Len() >= len(raw) {
			return nil
		}
		if err := os.WriteFile(path+".gz", buf.Bytes(), 0o644); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path+".gz")
		if err != nil {
			return err
		}
		created = append(created, filepath.ToSlash(rel))
		return nil
	})
	sort.Strings(created)
	return created, err
}

// Fingerprint summarises names, sizes and modification times of every file below roots.
// Missing roots contribute nothing. It changes whenever a file is added, removed or edited.
func Fingerprint(roots ...string) (uint64, error) {
	h := fnv.New64a()
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return nil
				}
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			_, _ = io.WriteString(h, path)
			_, _ = io.WriteString(h, strconv.FormatInt(info.Size(), 10))
			_, _ = io.WriteString(h, strconv.FormatInt(info.ModTime().UnixNano(), 10))
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return h.Sum64(), nil
}

func compressible(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range CompressibleExts {
		if ext == candidate {
			return true
		}
	}
	return false
}
