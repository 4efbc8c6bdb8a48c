package wikisnip

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"git.fractalqb.de/fractalqb/testerr"
)

const twoPages = `<mediawiki>
  <siteinfo>
    <sitename>X</sitename>
  </siteinfo>
  <page>
    <title>A</title>
    <ns>0</ns>
    <id>5</id>
    <revision>r</revision>
  </page>
  <page>
    <title>B</title>
    <ns>0</ns>
    <id>9</id>
    <revision>s</revision>
  </page>
</mediawiki>
`

const (
	twoPagesHead = `<mediawiki>
  <siteinfo>
    <sitename>X</sitename>
  </siteinfo>
`
	twoPagesA = `  <page>
    <title>A</title>
    <ns>0</ns>
    <id>5</id>
    <revision>r</revision>
  </page>
`
	twoPagesB = `  <page>
    <title>B</title>
    <ns>0</ns>
    <id>9</id>
    <revision>s</revision>
  </page>
`
	twoPagesTail = "</mediawiki>\n"
)

func TestFilter_selection(t *testing.T) {
	tests := []struct {
		name   string
		sel    Selector
		expect string
		hits   uint64
	}{
		{"one page", NewIDSet(9), twoPagesHead + twoPagesB + twoPagesTail, 1},
		{"no page", NewIDSet(), twoPagesHead + twoPagesTail, 0},
		{"nil set", IDSet(nil), twoPagesHead + twoPagesTail, 0},
		{"unknown ids", NewIDSet(1, 2, 3), twoPagesHead + twoPagesTail, 0},
		{"both pages", NewIDSet(5, 9), twoPages, 2},
		{"all pages", AllPages, twoPages, 2},
		{"default", nil, twoPages, 2},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := Filter{Select: test.sel}
			out, stats := filterString(t, &f, twoPages)
			if out != test.expect {
				t.Errorf("output:\n%s\nexpected:\n%s", out, test.expect)
			}
			if stats.Pages != 2 {
				t.Errorf("total pages %d", stats.Pages)
			}
			if stats.Hits != test.hits {
				t.Errorf("hits %d, expected %d", stats.Hits, test.hits)
			}
			if stats.Lines != 17 {
				t.Errorf("read %d lines", stats.Lines)
			}
		})
	}
}

func TestFilter_verbatim(t *testing.T) {
	t.Run("nested markup", func(t *testing.T) {
		page := `  <page>
    <title>Page (XML)</title>
    <ns>0</ns>
    <id>42</id>
    <revision>
      <id>5</id>
      <contributor>
        <id>9</id>
      </contributor>
      <text xml:space="preserve">A &lt;page&gt; element
&lt;/page&gt;
  &lt;mediawiki&gt;

x <- not a tag</text>
    </revision>
  </page>
`
		dump := "<mediawiki>\n" + page + twoPagesA + "</mediawiki>\n"
		out, stats := filterString(t, &Filter{Select: NewIDSet(42)}, dump)
		if expect := "<mediawiki>\n" + page + "</mediawiki>\n"; out != expect {
			t.Errorf("output:\n%s\nexpected:\n%s", out, expect)
		}
		if stats.Pages != 2 || stats.Hits != 1 {
			t.Errorf("wrong counts: %+v", stats)
		}
	})
	t.Run("crlf", func(t *testing.T) {
		dump := strings.ReplaceAll(twoPages, "\n", "\r\n")
		out, _ := filterString(t, &Filter{}, dump)
		if out != dump {
			t.Errorf("output differs from input:\n%q", out)
		}
	})
	t.Run("no final newline", func(t *testing.T) {
		dump := strings.TrimSuffix(twoPages, "\n")
		out, _ := filterString(t, &Filter{}, dump)
		if out != dump {
			t.Errorf("output differs from input:\n%q", out)
		}
	})
	t.Run("xml declaration", func(t *testing.T) {
		dump := `<?xml version="1.0" encoding="utf-8"?>` + "\n" + twoPages
		out, _ := filterString(t, &Filter{Select: NewIDSet(5)}, dump)
		expect := `<?xml version="1.0" encoding="utf-8"?>` + "\n" +
			twoPagesHead + twoPagesA + twoPagesTail
		if out != expect {
			t.Errorf("output:\n%s\nexpected:\n%s", out, expect)
		}
	})
}

func TestFilter_termination(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		out, stats := filterString(t, &Filter{}, "")
		if out != "" || stats.Lines != 0 {
			t.Errorf("unexpected output '%s' from %d lines", out, stats.Lines)
		}
	})
	t.Run("stop after dump", func(t *testing.T) {
		out, stats := filterString(t, &Filter{},
			"<mediawiki>\n</mediawiki>\ntrailing garbage\n",
		)
		if out != "<mediawiki>\n</mediawiki>\n" {
			t.Errorf("unexpected output '%s'", out)
		}
		if stats.Lines != 2 {
			t.Errorf("read %d lines", stats.Lines)
		}
	})
}

func TestFilter_errors(t *testing.T) {
	tests := []struct {
		name  string
		dump  string
		state State
		tag   string
		line  int
	}{
		{"no closing mediawiki", strings.TrimSuffix(twoPages, twoPagesTail), InDump, EOFTag, 17},
		{"eof in siteinfo", "<mediawiki>\n<siteinfo>\n", InSiteInfo, EOFTag, 3},
		{"eof in page head", "<mediawiki>\n<page>\n<title>A</title>\n", InPage, EOFTag, 4},
		{"eof in selected page", "<mediawiki>\n<page>\n<id>1</id>\n", Emitting, EOFTag, 4},
		{"eof in dropped page", "<mediawiki>\n<page>\n<id>2</id>\ntext\n", Discarding, EOFTag, 5},
		{"content before dump", "hello\n", Idle, "", 1},
		{"content in dump", "<mediawiki>\nhello\n", InDump, "", 2},
		{"content in page head", "<mediawiki>\n<page>\nhello\n", InPage, "", 3},
		{"tag before dump", "<page>\n", Idle, "page", 1},
		{"nested dump", "<mediawiki>\n<mediawiki>\n", InDump, "mediawiki", 2},
		{"unknown tag in dump", "<mediawiki>\n<foo/>\n", InDump, "foo", 2},
		{"revision before id", "<mediawiki>\n<page>\n<revision>\n", InPage, "revision", 3},
		{"page in page head", "<mediawiki>\n<page>\n<page>\n", InPage, "page", 3},
		{"close page without id", "<mediawiki>\n<page>\n</page>\n", InPage, "/page", 3},
		{"close siteinfo in dump", "<mediawiki>\n</siteinfo>\n", InDump, "/siteinfo", 2},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := Filter{Select: NewIDSet(1)}
			_, _, err := f.FilterString(test.dump)
			var serr StructureError
			if !errors.As(err, &serr) {
				t.Fatalf("expected structure error, got %v", err)
			}
			if serr.State != test.state || serr.Tag != test.tag {
				t.Errorf("got state %s tag '%s', expected %s '%s'",
					serr.State, serr.Tag,
					test.state, test.tag,
				)
			}
			var lerr LineError
			if !errors.As(err, &lerr) {
				t.Fatalf("error without position: %s", err)
			}
			if lerr.Line != test.line {
				t.Errorf("error in line %d, expected %d", lerr.Line, test.line)
			}
		})
	}
}

func TestFilter_idErrors(t *testing.T) {
	for _, id := range []string{"abc", "-1", "", " 12", "18446744073709551616"} {
		dump := fmt.Sprintf("<mediawiki>\n<page>\n<id>%s</id>\n</page>\n</mediawiki>\n", id)
		// a page that would not be selected anyway must fail as well
		_, _, err := (&Filter{Select: NewIDSet()}).FilterString(dump)
		var ierr IDError
		if !errors.As(err, &ierr) {
			t.Errorf("id '%s': expected id error, got %v", id, err)
		} else if ierr.Text != id {
			t.Errorf("id error text '%s', expected '%s'", ierr.Text, id)
		}
	}
}

func TestFilter_malformed(t *testing.T) {
	dump := "<mediawiki>\n  <page>\n    <title>A</title>\n    <id>5\n"
	_, _, err := (&Filter{}).FilterString(dump)
	if !errors.Is(err, ErrMalformedTag) {
		t.Fatalf("expected malformed tag, got %v", err)
	}
	var lerr LineError
	if !errors.As(err, &lerr) {
		t.Fatalf("error without position: %s", err)
	}
	if lerr.Line != 4 || lerr.Offset != 42 {
		t.Errorf("wrong position line %d offset %d", lerr.Line, lerr.Offset)
	}
}

func filterString(t *testing.T, f *Filter, dump string) (string, Stats) {
	t.Helper()
	out, stats, err := f.FilterString(dump)
	if err != nil {
		t.Fatal(err)
	}
	return out, stats
}

type failWriter struct{ err error }

func (w failWriter) Write([]byte) (int, error) { return 0, w.err }

func TestFilter_writeError(t *testing.T) {
	werr := errors.New("disk full")
	_, err := (&Filter{}).Run(failWriter{werr}, strings.NewReader(twoPages))
	if !errors.Is(err, werr) {
		t.Errorf("expected write error, got %v", err)
	}
}

func TestFilter_callbacks(t *testing.T) {
	var dump strings.Builder
	dump.WriteString("<mediawiki>\n")
	for id := 1; id <= 7; id++ {
		fmt.Fprintf(&dump, "<page>\n<title>T%d &amp; more</title>\n<ns>0</ns>\n<id>%d</id>\n</page>\n", id, id)
	}
	dump.WriteString("</mediawiki>\n")

	var (
		progress []Progress
		selected []string
	)
	f := Filter{
		Select:        NewIDSet(2, 3, 6),
		ProgressEvery: 3,
		OnProgress:    func(p Progress) { progress = append(progress, p) },
		OnSelect: func(id uint64, title string) {
			selected = append(selected, fmt.Sprintf("%d:%s", id, title))
		},
	}
	_, stats := filterString(t, &f, dump.String())
	if stats.Pages != 7 || stats.Hits != 3 {
		t.Errorf("wrong counts: %+v", stats)
	}
	if len(progress) != 2 {
		t.Fatalf("%d progress reports", len(progress))
	}
	if p := progress[0]; p.Pages != 3 || p.Hits != 1 || p.ID != 3 || p.Title != "T3 & more" {
		t.Errorf("first progress %+v", p)
	}
	if p := progress[1]; p.Pages != 6 || p.Hits != 2 || p.ID != 6 {
		t.Errorf("second progress %+v", p)
	}
	expect := []string{"2:T2 & more", "3:T3 & more", "6:T6 & more"}
	if fmt.Sprint(selected) != fmt.Sprint(expect) {
		t.Errorf("selected %v, expected %v", selected, expect)
	}
}

func TestFilter_reuse(t *testing.T) {
	f := Filter{Select: NewIDSet(9)}
	for i := 0; i < 3; i++ {
		_, stats := filterString(t, &f, twoPages)
		if stats.Pages != 2 || stats.Hits != 1 {
			t.Errorf("run %d: counters not reset: %+v", i, stats)
		}
	}
}

func syntheticDump(pages int) string {
	var sb strings.Builder
	sb.WriteString("<mediawiki>\n")
	for id := 1; id <= pages; id++ {
		fmt.Fprintf(&sb, "  <page>\n    <title>Page %08d</title>\n    <ns>0</ns>\n    <id>%d</id>\n", id, id)
		sb.WriteString("    <revision>\n      <text>Lorem ipsum dolor sit amet</text>\n    </revision>\n  </page>\n")
	}
	sb.WriteString("</mediawiki>\n")
	return sb.String()
}

func TestFilter_peakPending(t *testing.T) {
	var peaks []int
	for _, n := range []int{10, 1000} {
		_, stats := filterString(t, &Filter{Select: NewIDSet(3)}, syntheticDump(n))
		if stats.Pages != uint64(n) || stats.Hits != 1 {
			t.Errorf("%d pages: wrong counts %+v", n, stats)
		}
		peaks = append(peaks, stats.PeakPending)
	}
	head := len("  <page>\n    <title>Page 00000001</title>\n    <ns>0</ns>\n")
	if peaks[0] != head || peaks[1] != head {
		t.Errorf("peak pending %v, expected %d", peaks, head)
	}
}

func TestFilter_pendingOnlyInPage(t *testing.T) {
	f := Filter{Select: NewIDSet(9)}
	r := f.newRun(io.Discard, strings.NewReader(twoPages+"\n"))
	flushes, drops := 0, 0
	for r.lr.Next() {
		tag, isTag, err := r.cls.Classify(r.lr.Line())
		if err != nil {
			t.Fatal(err)
		}
		before := r.pendingLen()
		stop := testerr.Shall1(r.step(tag, isTag, r.lr.Line(), r.lr.Sep())).BeNil(t)
		if r.pendingLen() > 0 && r.state != InPage {
			t.Errorf("line %d: %d pending lines in state %s", r.lr.LineNo(), r.pendingLen(), r.state)
		}
		if before > 0 && r.pendingLen() == 0 {
			switch r.state {
			case Emitting:
				flushes++
			case Discarding:
				drops++
			default:
				t.Errorf("line %d: pending cleared in state %s", r.lr.LineNo(), r.state)
			}
		}
		if stop {
			break
		}
	}
	if flushes != 1 || drops != 1 {
		t.Errorf("%d flushes and %d drops", flushes, drops)
	}
	if r.state != Idle {
		t.Errorf("run ended in state %s", r.state)
	}
}

func TestTransitions(t *testing.T) {
	for s := Idle; s <= Discarding; s++ {
		found := false
		for e := range transitions {
			if e.state == s {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("no transition from %s", s)
		}
	}
	tests := []struct {
		state State
		tag   string
		isTag bool
		next  State
		act   action
		ok    bool
	}{
		{Emitting, "mediawiki", true, Emitting, doEmit, true},
		{Emitting, "", false, Emitting, doEmit, true},
		{Discarding, "page", true, Discarding, doDrop, true},
		{Discarding, "/page", true, InDump, doDrop, true},
		{InSiteInfo, "namespace", true, InSiteInfo, doEmit, true},
		{InPage, "", false, 0, 0, false},
		{InDump, "", false, 0, 0, false},
		{Idle, "siteinfo", true, 0, 0, false},
	}
	for _, test := range tests {
		tr, ok := lookup(test.state, test.tag, test.isTag)
		if ok != test.ok {
			t.Errorf("%s/%s: found %t", test.state, test.tag, ok)
			continue
		}
		if ok && (tr.next != test.next || tr.act != test.act) {
			t.Errorf("%s/%s: got %+v", test.state, test.tag, tr)
		}
	}
}

func TestState_String(t *testing.T) {
	if s := Discarding.String(); s != "Discarding" {
		t.Errorf("wrong name '%s'", s)
	}
	if s := State(17).String(); s != "State(17)" {
		t.Errorf("wrong name '%s'", s)
	}
}
