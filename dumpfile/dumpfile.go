// Package dumpfile opens and creates the files a filter run works on.
// Dumps are distributed compressed; the compression is detected from the
// file name.
package dumpfile

import (
	"bufio"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/fractalqb/wikisnip"
)

// Compression of a file
type Compression int

const (
	Plain Compression = iota
	Bzip2
	Gzip
	Zstd
)

var suffixes = []struct {
	sfx string
	cmp Compression
}{
	{".bz2", Bzip2},
	{".gz", Gzip},
	{".zst", Zstd},
}

// Detect returns the compression of a file by its name suffix.
func Detect(name string) Compression {
	lname := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lname, s.sfx) {
			return s.cmp
		}
	}
	return Plain
}

// StdStream is the file name used for stdin and stdout.
const StdStream = "-"

// Open opens the file name for reading and decompresses it if needed. The
// name "-" reads from stdin.
func Open(name string) (io.ReadCloser, error) {
	if name == StdStream {
		return io.NopCloser(bufio.NewReaderSize(os.Stdin, 1<<20)), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	brd := bufio.NewReaderSize(f, 1<<20)
	switch Detect(name) {
	case Bzip2:
		return &readCloser{Reader: bzip2.NewReader(brd), cls: []io.Closer{f}}, nil
	case Gzip:
		// using parallel pgzip for better performance on large files
		zrd, err := pgzip.NewReader(brd)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip %s: %w", name, err)
		}
		return &readCloser{Reader: zrd, cls: []io.Closer{zrd, f}}, nil
	case Zstd:
		zrd, err := zstd.NewReader(brd)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd %s: %w", name, err)
		}
		zrc := zrd.IOReadCloser()
		return &readCloser{Reader: zrc, cls: []io.Closer{zrc, f}}, nil
	}
	return &readCloser{Reader: brd, cls: []io.Closer{f}}, nil
}

// Create creates the file name for writing and compresses what is
// written if the name asks for it. The name "-" writes to stdout.
// Closing the returned writer is required to complete the file.
func Create(name string) (io.WriteCloser, error) {
	if name == StdStream {
		return &writeCloser{Writer: os.Stdout}, nil
	}
	cmp := Detect(name)
	if cmp == Bzip2 {
		return nil, fmt.Errorf("%s: cannot write bzip2 compressed files", name)
	}
	f, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	switch cmp {
	case Gzip:
		zwr, err := pgzip.NewWriterLevel(f, pgzip.BestSpeed)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip %s: %w", name, err)
		}
		return &writeCloser{Writer: zwr, cls: []io.Closer{zwr, f}}, nil
	case Zstd:
		zwr, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd %s: %w", name, err)
		}
		return &writeCloser{Writer: zwr, cls: []io.Closer{zwr, f}}, nil
	}
	return &writeCloser{Writer: f, cls: []io.Closer{f}}, nil
}

// LoadIDs loads an identifier list that may be compressed like a dump.
func LoadIDs(name string) (wikisnip.IDSet, error) {
	rd, err := Open(name)
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	ids, err := wikisnip.ReadIDs(rd, wikisnip.ListComma(name))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return ids, nil
}

// FilterFile runs f on the dump in file input and writes the result to
// file output.
func FilterFile(f *wikisnip.Filter, input, output string) (stats wikisnip.Stats, err error) {
	rd, err := Open(input)
	if err != nil {
		return stats, err
	}
	defer rd.Close()
	wr, err := Create(output)
	if err != nil {
		return stats, err
	}
	defer func() {
		if cerr := wr.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("%s: %w", output, cerr)
		}
	}()
	if stats, err = f.Run(wr, rd); err != nil {
		return stats, fmt.Errorf("%s: %w", input, err)
	}
	return stats, nil
}

// OutputName derives the name of the output file for input in directory
// dir. Compression suffixes and ".xml" are removed from the input's base
// name before suffix is appended.
func OutputName(input, dir, suffix string) string {
	base := filepath.Base(input)
	if cmp := Detect(base); cmp != Plain {
		base = base[:len(base)-len(filepath.Ext(base))]
	}
	base = strings.TrimSuffix(base, ".xml")
	return filepath.Join(dir, base+suffix)
}

type readCloser struct {
	io.Reader
	cls []io.Closer
}

func (rc *readCloser) Close() error {
	var errs []error
	for _, c := range rc.cls {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type writeCloser struct {
	io.Writer
	cls []io.Closer
}

func (wc *writeCloser) Close() error {
	var errs []error
	for _, c := range wc.cls {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
