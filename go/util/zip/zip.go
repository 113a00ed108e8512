// Package zip contains helpers for unpacking zip archives.
package zip

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atalyaalon/patents-topic-modeling/go/skerr"
	"github.com/atalyaalon/patents-topic-modeling/go/util"
)

// UnZip unzips the file at zipPath into the targetDir, creating
// subdirectories as needed. Entries that would escape targetDir are
// rejected.
func UnZip(targetDir, zipPath string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return skerr.Wrapf(err, "opening %s", zipPath)
	}
	defer util.Close(r)

	for _, f := range r.File {
		dest := filepath.Join(targetDir, f.Name)
		if !strings.HasPrefix(dest, filepath.Clean(targetDir)+string(os.PathSeparator)) {
			return skerr.Fmt("archive entry %q escapes target directory", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return skerr.Wrap(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return skerr.Wrap(err)
		}
		if err := extractFile(f, dest); err != nil {
			return skerr.Wrapf(err, "extracting %s", f.Name)
		}
	}
	return nil
}

func extractFile(f *zip.File, dest string) error {
	in, err := f.Open()
	if err != nil {
		return skerr.Wrap(err)
	}
	defer util.Close(in)
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return skerr.Wrap(err)
	}
	defer util.Close(out)
	if _, err := io.Copy(out, in); err != nil {
		return skerr.Wrap(err)
	}
	return nil
}
