// Package archive bundles a directory tree into a single zip container and
// unpacks it again. Only regular files are stored, each under its path
// relative to the source directory.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/kebairia/snapback/internal/fsutil"
)

// ErrUnsafePath is returned by Unpack for entries that would land outside
// the destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Method selects how entries are compressed.
type Method string

const (
	MethodDeflate Method = "deflate"
	MethodZstd    Method = "zstd"
	MethodStore   Method = "store"
)

func (m Method) zipMethod() (uint16, error) {
	switch m {
	case MethodDeflate, "":
		return zip.Deflate, nil
	case MethodZstd:
		return zstd.ZipMethodWinZip, nil
	case MethodStore:
		return zip.Store, nil
	default:
		return 0, fmt.Errorf("unsupported compression method %q", m)
	}
}

type options struct {
	method Method
}

// Option configures Build.
type Option func(*options)

// WithMethod overrides the entry compression method.
func WithMethod(m Method) Option {
	return func(o *options) {
		if m != "" {
			o.method = m
		}
	}
}

// Build stores every regular file found under sourceDir into destFile.
// On any error the partially written destFile is removed.
func Build(ctx context.Context, sourceDir, destFile string, opts ...Option) (err error) {
	o := options{method: MethodDeflate}
	for _, opt := range opts {
		opt(&o)
	}
	method, err := o.method.zipMethod()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(destFile, os.O_CREATE|os.O_WRONLY|os.O_EXCL, fsutil.FilePerm)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", destFile, err)
	}
	defer func() {
		if err != nil {
			os.Remove(destFile) //nolint:errcheck // Best effort cleanup on error
		}
	}()

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())

	walkErr := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		return addFile(ctx, zw, path, filepath.ToSlash(rel), method)
	})
	if walkErr != nil {
		zw.Close()  //nolint:errcheck // already failing
		out.Close() //nolint:errcheck // already failing
		return fmt.Errorf("build archive %s: %w", destFile, walkErr)
	}

	if err := zw.Close(); err != nil {
		out.Close() //nolint:errcheck // already failing
		return fmt.Errorf("finalize archive %s: %w", destFile, err)
	}
	if err := out.Sync(); err != nil {
		out.Close() //nolint:errcheck // already failing
		return fmt.Errorf("sync archive %s: %w", destFile, err)
	}
	return out.Close()
}

//nolint:gosec // G304: path comes from walking the staging directory
func addFile(ctx context.Context, zw *zip.Writer, path, name string, method uint16) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // read-only

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("header for %s: %w", name, err)
	}
	hdr.Name = name
	hdr.Method = method

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := io.Copy(w, fsutil.NewReader(ctx, f)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Unpack extracts every entry of sourceFile below destDir, recreating
// directories as needed.
func Unpack(ctx context.Context, sourceFile, destDir string) error {
	zr, err := zip.OpenReader(sourceFile)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", sourceFile, err)
	}
	defer zr.Close() //nolint:errcheck // read-only
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	if err := fsutil.EnsureDirectoryExist(destDir); err != nil {
		return err
	}
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := destPath(destDir, f.Name)
		if err != nil {
			return err
		}
		if strings.HasSuffix(f.Name, "/") {
			if err := fsutil.EnsureDirectoryExist(target); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(ctx, f, target); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return nil
}

// destPath joins name onto destDir, refusing anything that leaves destDir.
func destPath(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	rel, err := filepath.Rel(filepath.Clean(destDir), target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func extractFile(ctx context.Context, f *zip.File, target string) (err error) {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close() //nolint:errcheck // read-only

	if err := fsutil.EnsureDirectoryExist(filepath.Dir(target)); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fsutil.FilePerm)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(out, fsutil.NewReader(ctx, rc))
	return err
}
