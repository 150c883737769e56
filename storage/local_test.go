package storage

import (
	"bytes"
	"crypto/rand"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&body, mw.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	require.Len(t, form.File["file"], 1)
	return form.File["file"][0]
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":            "report.pdf",
		"../../etc/passwd":      "passwd",
		`..\..\windows\win.ini`: "win.ini",
		"/abs/path/photo.png":   "photo.png",
		"..":                    "file",
		".":                     "file",
		"":                      "file",
		"dir/":                  "file",
		"  spaced name.txt  ":   "spaced name.txt",
		"bad\x00na\nme.txt":     "badname.txt",
		"résumé 2024.docx":      "résumé 2024.docx",
		"a..b.tar.gz":           "a..b.tar.gz",
	}
	for in, want := range cases {
		require.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}

func TestGenerateName(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	require.Equal(t, "1700000000123-report.pdf", GenerateName("report.pdf", now))
	require.Equal(t, "1700000000123-passwd", GenerateName("../../etc/passwd", now))
	require.Equal(t, GenerateName("x.bin", now), GenerateName("x.bin", now))
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestEnsureDir_FileInTheWay(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	require.Error(t, EnsureDir(filepath.Join(blocker, "uploads")))
}

func TestNewLocal_EmptyDir(t *testing.T) {
	_, err := NewLocal(" ", "/uploads")
	require.ErrorIs(t, err, ErrEmptyDir)
}

func TestLocal_Save(t *testing.T) {
	// given
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewLocal(dir, "uploads/")
	require.NoError(t, err)
	store.now = func() time.Time { return time.UnixMilli(42) }
	content := randomBytes(t, 64*1024)

	// when
	saved, err := store.Save(fileHeader(t, "data.bin", content))

	// then
	require.NoError(t, err)
	require.Equal(t, "42-data.bin", saved.Name)
	require.Equal(t, "data.bin", saved.OriginalName)
	require.Equal(t, "/uploads/42-data.bin", saved.URL)
	require.Equal(t, int64(len(content)), saved.Size)
	require.Equal(t, filepath.Join(dir, "42-data.bin"), saved.DiskPath)

	onDisk, err := os.ReadFile(saved.DiskPath)
	require.NoError(t, err)
	require.Equal(t, content, onDisk)

	t.Run("traversal name stays inside the directory", func(t *testing.T) {
		store.now = func() time.Time { return time.UnixMilli(43) }
		saved, err := store.Save(fileHeader(t, "../../escape.txt", []byte("nope")))
		require.NoError(t, err)
		require.Equal(t, "43-escape.txt", saved.Name)
		require.Equal(t, dir, filepath.Dir(saved.DiskPath))
	})

	t.Run("reserved characters are escaped in the URL", func(t *testing.T) {
		store.now = func() time.Time { return time.UnixMilli(44) }
		saved, err := store.Save(fileHeader(t, "a?b#c d%.txt", []byte("q")))
		require.NoError(t, err)
		require.Equal(t, "44-a?b#c d%.txt", saved.Name)
		require.Equal(t, "/uploads/44-a%3Fb%23c%20d%25.txt", saved.URL)
		require.FileExists(t, filepath.Join(dir, saved.Name))
	})

	t.Run("same millisecond and name does not overwrite", func(t *testing.T) {
		store.now = func() time.Time { return time.UnixMilli(42) }
		_, err := store.Save(fileHeader(t, "data.bin", []byte("other")))
		require.Error(t, err)

		onDisk, err := os.ReadFile(filepath.Join(dir, "42-data.bin"))
		require.NoError(t, err)
		require.Equal(t, content, onDisk)
	})

	t.Run("different times give distinct files", func(t *testing.T) {
		store.now = func() time.Time { return time.UnixMilli(100) }
		first, err := store.Save(fileHeader(t, "same.txt", []byte("one")))
		require.NoError(t, err)
		store.now = func() time.Time { return time.UnixMilli(200) }
		second, err := store.Save(fileHeader(t, "same.txt", []byte("two")))
		require.NoError(t, err)

		require.NotEqual(t, first.DiskPath, second.DiskPath)
		require.FileExists(t, first.DiskPath)
		require.FileExists(t, second.DiskPath)
	})
}
