package index

import (
	"bufio"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/teranos/idxtools/codec"
	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/logger"
)

var hashers = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
}

func checksum(raw []byte, algorithm string) string {
	newHash, ok := hashers[algorithm]
	if !ok {
		newHash = md5.New
	}
	h := newHash()
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil))
}

// Checksum hashes the backing file as it is on disk now, using the
// format's hash algorithm.
func (ix *Index) Checksum() (string, error) {
	if ix.path == "" {
		return "", errors.NewValidationError("index is not backed by a file")
	}
	raw, err := os.ReadFile(ix.path)
	if err != nil {
		return "", errors.WrapIOf(err, "read %s", ix.path)
	}
	return checksum(raw, ix.format.HashAlgorithm), nil
}

// Modified reports whether the backing file changed since it was loaded.
func (ix *Index) Modified() (bool, error) {
	if ix.path == "" {
		return false, nil
	}
	current, err := ix.Checksum()
	if err != nil {
		if os.IsNotExist(errors.UnwrapAll(err)) {
			return ix.checksum != "", nil
		}
		return false, err
	}
	return current != ix.checksum, nil
}

// Save writes the index back to its file in tag-line format, compressed
// when the file name ends in .gz or .zst. It refuses to overwrite a file
// that changed since it was loaded.
func (ix *Index) Save() error {
	if ix.path == "" {
		return errors.NewValidationError("index is not backed by a file")
	}
	modified, err := ix.Modified()
	if err != nil {
		return err
	}
	if modified {
		return errors.WithHint(
			errors.Wrapf(errors.ErrModified, "%s", ix.path),
			"reload the index and apply the change again")
	}

	if err := os.MkdirAll(filepath.Dir(ix.path), 0o755); err != nil {
		return errors.WrapIOf(err, "create directory for %s", ix.path)
	}
	f, err := os.Create(ix.path)
	if err != nil {
		return errors.WrapIOf(err, "create %s", ix.path)
	}
	defer f.Close()

	sink, err := codec.NewSink(f, codec.CompressionFor(ix.path))
	if err != nil {
		return err
	}
	if err := ix.SaveTo(sink); err != nil {
		return err
	}
	if err := sink.Close(); err != nil {
		return errors.WrapIOf(err, "finish %s", ix.path)
	}
	if err := f.Close(); err != nil {
		return errors.WrapIOf(err, "close %s", ix.path)
	}

	if ix.checksum, err = ix.Checksum(); err != nil {
		return err
	}
	ix.log.Infow("index saved",
		logger.FieldIndex, ix.path,
		logger.FieldCount, ix.Len(),
		"files", ix.FileCount())
	return nil
}

// SaveTo writes every dataset to w as tag lines, ordered by id and path.
func (ix *Index) SaveTo(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, ds := range ix.Datasets() {
		for _, rec := range ds.Export(nil, nil) {
			if _, err := bw.WriteString(codec.FormatLine(rec, ix.format) + "\n"); err != nil {
				return errors.WrapIO(err, "write index line")
			}
		}
	}
	return errors.WrapIO(bw.Flush(), "flush index")
}
