package archive

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// treeOf returns relative path -> content for every regular file under root.
func treeOf(t *testing.T, root string) map[string][]byte {
	t.Helper()
	files := make(map[string][]byte)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = data
		return nil
	})
	require.NoError(t, err)
	return files
}

func seedTree(t *testing.T, root string) {
	t.Helper()
	files := map[string][]byte{
		"database.db":                          bytes.Repeat([]byte("SQLite format 3\x00"), 512),
		"metadata.json":                        []byte(`{"backupId":"x"}`),
		"files/Receipts/2024/03/r-001.pdf":     []byte("%PDF-1.7 receipt"),
		"files/Documents/contracts/empty.docx": {},
		"files/reports/q1/deep/nested/sum.csv": []byte("a,b\n1,2\n"),
	}
	for rel, data := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, data, 0o640))
	}
}

func TestBuildUnpack_RoundTrip(t *testing.T) {
	for _, method := range []Method{MethodDeflate, MethodZstd, MethodStore} {
		t.Run(string(method), func(t *testing.T) {
			src := t.TempDir()
			seedTree(t, src)
			out := filepath.Join(t.TempDir(), "snap.zip")

			require.NoError(t, Build(context.Background(), src, out, WithMethod(method)))

			dst := filepath.Join(t.TempDir(), "unpacked")
			require.NoError(t, Unpack(context.Background(), out, dst))

			require.Equal(t, treeOf(t, src), treeOf(t, dst))
		})
	}
}

func TestBuild_EmptyDirectory(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "empty.zip")

	require.NoError(t, Build(context.Background(), src, out))

	dst := t.TempDir()
	require.NoError(t, Unpack(context.Background(), out, dst))
	require.Empty(t, treeOf(t, dst))
}

func TestBuild_RemovesPartialOutputOnError(t *testing.T) {
	out := filepath.Join(t.TempDir(), "broken.zip")

	err := Build(context.Background(), filepath.Join(t.TempDir(), "missing"), out)
	require.Error(t, err)
	_, statErr := os.Stat(out)
	require.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestBuild_Cancelled(t *testing.T) {
	src := t.TempDir()
	seedTree(t, src)
	out := filepath.Join(t.TempDir(), "snap.zip")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Build(ctx, src, out)
	require.ErrorIs(t, err, context.Canceled)
	require.NoFileExists(t, out)
}

func TestBuild_UnknownMethod(t *testing.T) {
	err := Build(context.Background(), t.TempDir(), filepath.Join(t.TempDir(), "x.zip"), WithMethod("lz4"))
	require.Error(t, err)
}

func TestUnpack_RejectsTraversal(t *testing.T) {
	out := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(out)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("../../etc/evil")
	require.NoError(t, err)
	_, err = w.Write([]byte("pwned"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	base := t.TempDir()
	dst := filepath.Join(base, "a", "b")
	require.Error(t, Unpack(context.Background(), out, dst))
	require.NoFileExists(t, filepath.Join(base, "etc", "evil"))
}

func TestDestPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dst")

	got, err := destPath(dir, "files/Receipts/a.pdf")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "files", "Receipts", "a.pdf"), got)

	_, err = destPath(dir, "../outside")
	require.ErrorIs(t, err, ErrUnsafePath)

	got, err = destPath(".", "a.txt")
	require.NoError(t, err)
	require.Equal(t, "a.txt", got)

	got, err = destPath("./out", "files/a.txt")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("out", "files", "a.txt"), got)

	_, err = destPath(".", "../a.txt")
	require.ErrorIs(t, err, ErrUnsafePath)
}

func TestUnpack_IntoCurrentDirectory(t *testing.T) {
	src := t.TempDir()
	seedTree(t, src)
	out := filepath.Join(t.TempDir(), "snapshot.zip")
	require.NoError(t, Build(context.Background(), src, out))

	dst := t.TempDir()
	t.Chdir(dst)
	require.NoError(t, Unpack(context.Background(), out, "."))

	require.Equal(t, treeOf(t, src), treeOf(t, dst))
}

func TestUnpack_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o640))

	require.Error(t, Unpack(context.Background(), path, t.TempDir()))
}
