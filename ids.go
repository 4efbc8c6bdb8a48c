package wikisnip

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Selector decides which pages a Filter keeps.
type Selector interface {
	Contains(id uint64) bool
}

type allPages struct{}

func (allPages) Contains(uint64) bool { return true }

// AllPages selects every page of a dump.
var AllPages Selector = allPages{}

// IDSet is a set of page identifiers. It is not modified after loading
// and can be shared by concurrent filter runs.
type IDSet map[uint64]struct{}

func NewIDSet(ids ...uint64) IDSet {
	res := make(IDSet, len(ids))
	for _, id := range ids {
		res[id] = struct{}{}
	}
	return res
}

func (s IDSet) Contains(id uint64) bool {
	_, ok := s[id]
	return ok
}

// ReadIDs reads an identifier list from delimited records. The first
// record is a header and is skipped. From all other records the first
// field is taken as page id.
func ReadIDs(r io.Reader, comma rune) (IDSet, error) {
	crd := csv.NewReader(r)
	crd.Comma = comma
	crd.FieldsPerRecord = -1
	crd.TrimLeadingSpace = true
	crd.ReuseRecord = true
	ids := make(IDSet)
	if _, err := crd.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return ids, nil
		}
		return nil, csvError(err)
	}
	for {
		rec, err := crd.Read()
		switch {
		case errors.Is(err, io.EOF):
			return ids, nil
		case err != nil:
			return nil, csvError(err)
		case len(rec) == 0:
			continue
		}
		field := strings.TrimSpace(rec[0])
		id, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			line, _ := crd.FieldPos(0)
			return nil, IDListError{Line: line, Field: field, err: err}
		}
		ids[id] = struct{}{}
	}
}

// LoadIDs reads the identifier list from file. Files with suffix ".tsv"
// are tab separated, all others comma separated.
func LoadIDs(file string) (IDSet, error) {
	r, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ReadIDs(r, ListComma(file))
}

// ListComma returns the field delimiter used for an identifier list file.
func ListComma(file string) rune {
	file = strings.ToLower(file)
	for _, sfx := range []string{".gz", ".bz2", ".zst"} {
		file = strings.TrimSuffix(file, sfx)
	}
	switch filepath.Ext(file) {
	case ".tsv", ".tab":
		return '\t'
	}
	return ','
}

func csvError(err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return IDListError{Line: perr.Line, err: perr.Err}
	}
	return err
}
