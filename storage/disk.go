package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"pick-roll/errors"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DiskStorage is a contract.BlobStorage keeping files under a root directory.
// Files are served by the HTTP layer under {baseURL}/files/.
type DiskStorage struct {
	root    string
	baseURL string
	log     *slog.Logger
}

func NewDiskStorage(root, baseURL string, log *slog.Logger) (*DiskStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating files directory: %w", err)
	}
	return &DiskStorage{root: root, baseURL: strings.TrimSuffix(baseURL, "/"), log: log}, nil
}

func (d *DiskStorage) Root() string {
	return d.root
}

// Upload writes r to name. The file is written aside then renamed,
// so readers never see a partial upload.
func (d *DiskStorage) Upload(ctx context.Context, name string, r io.Reader) error {
	target, err := d.resolve(name)
	if err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrBackendUnavailable, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrBackendUnavailable, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	src := &sourceReader{r: r}
	written, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if src.err != nil {
		return sourceError(src.err)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrBackendUnavailable, err)
	}
	if err = os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrBackendUnavailable, err)
	}
	d.log.Debug("File stored", "path", name, "bytes", written)
	return nil
}

// URL returns the public address of an uploaded file.
func (d *DiskStorage) URL(ctx context.Context, name string) (string, error) {
	target, err := d.resolve(name)
	if err != nil {
		return "", err
	}
	if err = ctx.Err(); err != nil {
		return "", err
	}
	if _, err = os.Stat(target); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", errors.ErrNotFound, name)
		}
		return "", fmt.Errorf("%w: %v", errors.ErrBackendUnavailable, err)
	}
	return d.baseURL + "/files/" + path.Clean(name), nil
}

// sourceReader remembers read failures so they are not blamed on the disk.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}

// sourceError reports a failing upload body as a client fault.
func sourceError(err error) error {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return fmt.Errorf("%w: upload exceeds %d bytes", errors.ErrInvalidArgument, tooLarge.Limit)
	}
	return fmt.Errorf("%w: reading upload: %v", errors.ErrInvalidArgument, err)
}

func (d *DiskStorage) resolve(name string) (string, error) {
	clean := path.Clean(name)
	if name == "" || path.IsAbs(name) || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: invalid file path %q", errors.ErrInvalidArgument, name)
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

// Extension sniffs the first bytes of a file and returns its extension, dot included.
// Unknown content yields ".bin".
func Extension(head []byte) string {
	ext := mimetype.Detect(head).Extension()
	if ext == "" {
		return ".bin"
	}
	return ext
}

// MimeType returns the sniffed media type of head.
func MimeType(head []byte) string {
	return mimetype.Detect(head).String()
}
