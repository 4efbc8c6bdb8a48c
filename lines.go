package wikisnip

import (
	"bufio"
	"bytes"
	"io"
)

// DefaultMaxLineSize is the longest line a LineReader accepts unless
// configured otherwise. Page text in dumps can put whole paragraphs or
// tables on a single line.
const DefaultMaxLineSize = 64 << 20

// LineReader reads a decoded dump line by line. Other than a plain
// bufio.Scanner it keeps the line separator of each line so that lines
// can be written back byte by byte.
type LineReader struct {
	scn  *bufio.Scanner
	sep  lineSepScanner
	lno  int
	off  int64
	next int64
}

// NewLineReader creates a LineReader on r. If maxLine is <= 0
// DefaultMaxLineSize is used.
func NewLineReader(r io.Reader, maxLine int) *LineReader {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineSize
	}
	lr := &LineReader{scn: bufio.NewScanner(r)}
	initBuf := 64 * 1024
	if initBuf > maxLine {
		initBuf = maxLine
	}
	lr.scn.Buffer(make([]byte, 0, initBuf), maxLine)
	lr.scn.Split(lr.sep.ScanLines)
	return lr
}

// Next advances to the next line. It returns false at the end of input
// or on error, see Err.
func (lr *LineReader) Next() bool {
	if !lr.scn.Scan() {
		return false
	}
	lr.lno++
	lr.off = lr.next
	lr.next += int64(len(lr.scn.Bytes()) + len(lr.sep))
	return true
}

// Line returns the current line without its separator. The slice is only
// valid until the next call to Next.
func (lr *LineReader) Line() []byte { return lr.scn.Bytes() }

// Sep returns the separator of the current line, i.e. "\n", "\r\n" or an
// empty slice for a last line without newline.
func (lr *LineReader) Sep() []byte { return lr.sep }

// LineNo returns the 1-based number of the current line.
func (lr *LineReader) LineNo() int { return lr.lno }

// Offset returns the byte offset of the current line's start.
func (lr *LineReader) Offset() int64 { return lr.off }

func (lr *LineReader) Err() error { return lr.scn.Err() }

type lineSepScanner []byte

func (lsc *lineSepScanner) ScanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	// modificated version of bufio.Scan
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		res, cr := dropCR(data[0:i])
		*lsc = data[i-cr : i+1]
		return i + 1, res, nil
	}
	if atEOF {
		res, cr := dropCR(data)
		*lsc = data[len(data)-cr:]
		return len(data), res, nil
	}
	return 0, nil, nil
}

func dropCR(data []byte) ([]byte, int) {
	// modificated version of bufio.dropCR
	if len(data) > 0 && data[len(data)-1] == '\r' {
		return data[0 : len(data)-1], 1
	}
	return data, 0
}
