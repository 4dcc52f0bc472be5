package fsutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCopyDir_OverwritesAndKeepsExtras(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(src, "2024", "03"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(src, "2024", "03", "r1.pdf"), []byte("new"), 0o640))
	require.NoError(t, os.WriteFile(filepath.Join(src, "empty.txt"), nil, 0o640))

	require.NoError(t, os.MkdirAll(filepath.Join(dst, "2024", "03"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "2024", "03", "r1.pdf"), []byte("old-and-longer"), 0o640))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "extra.txt"), []byte("keep"), 0o640))

	require.NoError(t, CopyDir(context.Background(), src, dst))

	got, err := os.ReadFile(filepath.Join(dst, "2024", "03", "r1.pdf"))
	require.NoError(t, err)
	require.Equal(t, "new", string(got))

	info, err := os.Stat(filepath.Join(dst, "empty.txt"))
	require.NoError(t, err)
	require.Zero(t, info.Size())

	require.True(t, Exists(filepath.Join(dst, "extra.txt")))
}

func TestCopyFile_HonorsCancellation(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o640))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := CopyFile(ctx, src, filepath.Join(dir, "dst"))
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
}
