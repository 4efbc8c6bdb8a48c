package wikisnip

import (
	"bytes"
	"fmt"
	"regexp"
)

// Tag is a structural tag found on a dump line.
type Tag struct {
	// Name of the tag with a leading '/' for closing tags.
	Name string
	// Text is the inline content of <id> and <title> lines.
	Text string
}

// Classifier decides whether a line is a tag line and which tag it
// carries. Classify returns ok == false for content lines. An error
// means the line is a tag line that cannot be classified.
type Classifier interface {
	Classify(line []byte) (tag Tag, ok bool, err error)
}

// LineClassifier classifies lines by the first tag at the start of the
// line. It does not look any further into the line and thus does not
// care about markup in page content.
type LineClassifier struct {
	name *regexp.Regexp
	text *regexp.Regexp
}

func NewLineClassifier() *LineClassifier {
	return &LineClassifier{
		name: regexp.MustCompile(`^[ \t]*<(/?[^\s/>]+)(?:[\s/>]|$)`),
		text: regexp.MustCompile(`^[ \t]*<(id|title)>([^<]*)</(id|title)>`),
	}
}

func (lc *LineClassifier) Classify(line []byte) (tag Tag, ok bool, err error) {
	if !isTagLine(line) {
		return tag, false, nil
	}
	m := lc.name.FindSubmatchIndex(line)
	if m == nil {
		return tag, true, ErrMalformedTag
	}
	tag.Name = string(line[m[2]:m[3]])
	switch tag.Name {
	case "id", "title":
		t := lc.text.FindSubmatch(line)
		if t == nil || !bytes.Equal(t[1], t[3]) {
			return tag, true, fmt.Errorf("%w: <%s> without inline text", ErrMalformedTag, tag.Name)
		}
		tag.Text = string(t[2])
	}
	return tag, true, nil
}

// isTagLine reports if the first non-blank byte of line is '<'.
func isTagLine(line []byte) bool {
	for _, c := range line {
		switch c {
		case ' ', '\t':
		case '<':
			return true
		default:
			return false
		}
	}
	return false
}
