package db

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, path string) []Entry {
	t.Helper()
	rc, err := OpenFasta(path)
	require.NoError(t, err)
	defer rc.Close()

	var out []Entry
	require.NoError(t, ReadFasta(context.Background(), rc, func(e Entry) error {
		out = append(out, e)
		return nil
	}))
	return out
}

func TestReadFasta(t *testing.T) {
	input := ">KCB09_00064 putative peptide\nMKV\nLLA*\n>empty\n>spaces\n   \n>p2\nGG\n"

	var got []Entry
	err := ReadFasta(context.Background(), strings.NewReader(input), func(e Entry) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 4)
	assert.Equal(t, Entry{ID: "KCB09_00064", Description: "putative peptide", Sequence: "MKVLLA*"}, got[0])
	assert.Equal(t, "empty", got[1].ID)
	assert.Empty(t, got[1].Sequence)
	assert.Equal(t, "spaces", got[2].ID)
	assert.Empty(t, strings.TrimSpace(got[2].Sequence))
	assert.Equal(t, Entry{ID: "p2", Sequence: "GG"}, got[3])
}

func TestReadFastaMalformed(t *testing.T) {
	err := ReadFasta(context.Background(), strings.NewReader("MKV\n>p1\nGG\n"), func(Entry) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedFasta))
}

func TestReadFastaReadFailure(t *testing.T) {
	boom := errors.New("device error")
	r := io.MultiReader(strings.NewReader(">a\nMK"), iotest.ErrReader(boom))

	err := ReadFasta(context.Background(), r, func(Entry) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreadableInput)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrMalformedFasta)
}

func TestReadFastaTruncatedGzip(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte(strings.Repeat(">p\nMKVLLA\n", 200)))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	path := filepath.Join(t.TempDir(), "cut.faa.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes()[:buf.Len()-6], 0o644))

	rc, err := OpenFasta(path)
	require.NoError(t, err)
	defer rc.Close()

	err = ReadFasta(context.Background(), rc, func(Entry) error { return nil })
	assert.ErrorIs(t, err, ErrUnreadableInput)
	assert.NotErrorIs(t, err, ErrMalformedFasta)
}

func TestReadFastaCallbackError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := ReadFasta(context.Background(), strings.NewReader(">a\nM\n>b\nK\n"), func(Entry) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestReadFastaCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ReadFasta(ctx, strings.NewReader(">a\nM\n"), func(Entry) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenFastaGzip(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte(">seq1\nACGT\n>seq2\nMK\n"))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	dir := t.TempDir()
	// Magic number detection does not depend on the suffix.
	path := filepath.Join(dir, "genome.fna")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got := readAll(t, path)
	require.Len(t, got, 2)
	assert.Equal(t, "seq1", got[0].ID)
	assert.Equal(t, "MK", got[1].Sequence)
}

func TestOpenFastaMissing(t *testing.T) {
	_, err := OpenFasta(filepath.Join(t.TempDir(), "absent.fasta"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFastaWriterCommit(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.fasta")
	require.NoError(t, os.WriteFile(dest, []byte(">old\nAAAA\n"), 0o644))

	fw, err := CreateFasta(dest, 4)
	require.NoError(t, err)
	require.NoError(t, fw.Write(Entry{ID: "a_seq1", Sequence: "MKVLLAGG"}))
	require.NoError(t, fw.Write(Entry{ID: "b_seq1", Description: "from b", Sequence: "MKL"}))

	// Nothing replaced before commit.
	before, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, ">old\nAAAA\n", string(before))

	require.NoError(t, fw.Commit())

	got := readAll(t, dest)
	assert.Equal(t, []Entry{
		{ID: "a_seq1", Sequence: "MKVLLAGG"},
		{ID: "b_seq1", Description: "from b", Sequence: "MKL"},
	}, got)

	raw, err := os.ReadFile(dest)
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		if !strings.HasPrefix(line, ">") {
			assert.LessOrEqual(t, len(line), 4)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestFastaWriterKeepsExistingMode(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.fasta")
	require.NoError(t, os.WriteFile(dest, []byte(">old\nAAAA\n"), 0o600))
	require.NoError(t, os.Chmod(dest, 0o640))

	fw, err := CreateFasta(dest, 60)
	require.NoError(t, err)
	require.NoError(t, fw.Write(Entry{ID: "x", Sequence: "M"}))
	require.NoError(t, fw.Commit())

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestFastaWriterWritesThroughSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.fasta")
	link := filepath.Join(dir, "out.fasta")
	require.NoError(t, os.WriteFile(target, []byte(">old\nAAAA\n"), 0o644))
	require.NoError(t, os.Symlink("real.fasta", link))

	fw, err := CreateFasta(link, 60)
	require.NoError(t, err)
	require.NoError(t, fw.Write(Entry{ID: "x", Sequence: "MK"}))
	require.NoError(t, fw.Commit())

	info, err := os.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink, "symlink was replaced")
	assert.Equal(t, []Entry{{ID: "x", Sequence: "MK"}}, readAll(t, target))
}

func TestFastaWriterAbort(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.fasta")

	fw, err := CreateFasta(dest, 60)
	require.NoError(t, err)
	require.NoError(t, fw.Write(Entry{ID: "x", Sequence: "M"}))
	require.NoError(t, fw.Abort())
	require.NoError(t, fw.Abort())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Error(t, fw.Commit())
}

func TestCreateFastaErrors(t *testing.T) {
	_, err := CreateFasta(filepath.Join(t.TempDir(), "missing", "out.fasta"), 60)
	assert.Error(t, err)

	_, err = CreateFasta(filepath.Join(t.TempDir(), "out.fasta"), 0)
	assert.Error(t, err)
}
