package db

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Defining possible error
var (
	ErrMalformedFasta  = errors.New("malformed FASTA")
	ErrUnreadableInput = errors.New("cannot read FASTA input")
)

// Entry is one FASTA record as read from or written to disk.
type Entry struct {
	ID          string
	Description string
	Sequence    string
}

// readErrRecorder remembers the first read failure of the underlying stream,
// so it can be told apart from a parse error.
type readErrRecorder struct {
	r   io.Reader
	err error
}

func (rr *readErrRecorder) Read(p []byte) (int, error) {
	n, err := rr.r.Read(p)
	if err != nil && err != io.EOF && rr.err == nil {
		rr.err = err
	}
	return n, err
}

// gzipReadCloser closes both the gzip stream and the underlying file.
type gzipReadCloser struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Close() error {
	return multierr.Append(g.Reader.Close(), g.file.Close())
}

// OpenFasta opens path for reading. gzip input is detected by magic number (1F 8B)
// or a .gz suffix and decompressed transparently.
func OpenFasta(path string) (io.ReadCloser, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if info, err := fh.Stat(); err == nil && info.IsDir() {
		_ = fh.Close()
		return nil, &os.PathError{Op: "open", Path: path, Err: errors.New("is a directory")}
	}

	var sig [2]byte
	n, _ := io.ReadFull(fh, sig[:])
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		_ = fh.Close()
		return nil, err
	}

	if (n == 2 && sig[0] == 0x1f && sig[1] == 0x8b) || strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(fh)
		if err != nil {
			_ = fh.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFasta, path, err)
		}
		return &gzipReadCloser{Reader: gr, file: fh}, nil
	}
	return fh, nil
}

// ReadFasta streams the records in r to fn, in file order.
// Whitespace inside sequence lines is dropped, so a whitespace-only sequence arrives empty.
// Sequence data before the first header is reported as ErrMalformedFasta,
// a failure of r itself (disk error, corrupt gzip stream) as ErrUnreadableInput.
func ReadFasta(ctx context.Context, r io.Reader, fn func(Entry) error) error {
	rr := &readErrRecorder{r: r}
	template := linear.NewSeq("", nil, alphabet.Protein)
	sc := seqio.NewScanner(fasta.NewReader(rr, template))

	for sc.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, ok := sc.Seq().(*linear.Seq)
		if !ok {
			return fmt.Errorf("%w: unexpected sequence type %T", ErrMalformedFasta, sc.Seq())
		}
		entry := Entry{
			ID:          s.ID,
			Description: s.Desc,
			Sequence:    string(alphabet.LettersToBytes(s.Seq)),
		}
		if err := fn(entry); err != nil {
			return err
		}
	}

	if rr.err != nil {
		return fmt.Errorf("%w: %w", ErrUnreadableInput, rr.err)
	}
	if err := sc.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFasta, err)
	}
	return nil
}

// FastaWriter writes records to a temporary file next to the destination and
// moves it into place on Commit. Until then, any existing file at the
// destination is left untouched. A destination that is a symlink is replaced
// through the link, and an existing file keeps its permissions.
type FastaWriter struct {
	dest   string
	tmp    *os.File
	buf    *bufio.Writer
	w      *fasta.Writer
	closed bool
}

func CreateFasta(dest string, width int) (*FastaWriter, error) {
	if width <= 0 {
		return nil, fmt.Errorf("line width must be positive, got %d", width)
	}

	dest, err := resolveLink(dest)
	if err != nil {
		return nil, err
	}

	tmp, err := createTemp(filepath.Dir(dest))
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(dest); err == nil {
		if err := tmp.Chmod(info.Mode().Perm()); err != nil {
			return nil, multierr.Combine(err, tmp.Close(), os.Remove(tmp.Name()))
		}
	}

	buf := bufio.NewWriterSize(tmp, 64*1024)
	return &FastaWriter{
		dest: dest,
		tmp:  tmp,
		buf:  buf,
		w:    fasta.NewWriter(buf, width),
	}, nil
}

func (fw *FastaWriter) Write(e Entry) error {
	s := linear.NewSeq(e.ID, alphabet.BytesToLetters([]byte(e.Sequence)), alphabet.Protein)
	s.Desc = e.Description
	_, err := fw.w.Write(s)
	return err
}

// Commit flushes, syncs and renames the temporary file over the destination.
func (fw *FastaWriter) Commit() error {
	if fw.closed {
		return errors.New("fasta writer already closed")
	}
	fw.closed = true
	tmpPath := fw.tmp.Name()

	err := fw.buf.Flush()
	if err == nil {
		err = fw.tmp.Sync()
	}
	err = multierr.Append(err, fw.tmp.Close())
	if err == nil {
		err = os.Rename(tmpPath, fw.dest)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	syncDir(filepath.Dir(fw.dest))
	return nil
}

// Abort discards everything written so far. Safe to call after Commit.
func (fw *FastaWriter) Abort() error {
	if fw.closed {
		return nil
	}
	fw.closed = true
	return multierr.Append(fw.tmp.Close(), os.Remove(fw.tmp.Name()))
}

// resolveLink follows dest when it is a symlink, so the link itself survives Commit.
func resolveLink(dest string) (string, error) {
	for i := 0; i < 40; i++ {
		info, err := os.Lstat(dest)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			return dest, nil
		}
		target, err := os.Readlink(dest)
		if err != nil {
			return "", err
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(dest), target)
		}
		dest = target
	}
	return "", &os.PathError{Op: "resolve", Path: dest, Err: errors.New("too many levels of symbolic links")}
}

// createTemp is os.CreateTemp with a 0666 mode, so the process umask decides
// the permissions of a new output file.
func createTemp(dir string) (*os.File, error) {
	for i := 0; i < 10; i++ {
		name := filepath.Join(dir, ".combine_fastas-"+uuid.NewString()+".tmp")
		f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		return f, err
	}
	return nil, &os.PathError{Op: "createtemp", Path: dir, Err: os.ErrExist}
}

// best-effort; directories cannot be synced on every platform
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
