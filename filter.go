package wikisnip

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"
	"time"

	"git.fractalqb.de/fractalqb/icontainer/islist"
)

// State is the state of a filter run.
type State uint8

const (
	// Idle is the state before <mediawiki> and after </mediawiki>.
	Idle State = iota
	// InDump is the state between pages inside <mediawiki>.
	InDump
	// InSiteInfo copies the <siteinfo> block.
	InSiteInfo
	// InPage buffers the head of a page until its <id> is known.
	InPage
	// Emitting copies the rest of a selected page.
	Emitting
	// Discarding skips the rest of a page that was not selected.
	Discarding
)

var stateNames = [...]string{
	Idle:       "Idle",
	InDump:     "InDump",
	InSiteInfo: "InSiteInfo",
	InPage:     "InPage",
	Emitting:   "Emitting",
	Discarding: "Discarding",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

type action uint8

const (
	doEmit action = iota
	doEmitPage
	doDrop
	doOpenPage
	doBuffer
	doTitle
	doDecide
	doStop
)

// Pseudo tags in the transition table
const (
	anyTag     = "*"
	contentTag = ""
)

type edge struct {
	state State
	tag   string
}

type transition struct {
	next State
	act  action
}

// transitions is the complete automaton. A (state, tag) pair missing
// here is a structural error. anyTag matches all tags but not content
// lines, contentTag matches content lines only. The target state of
// doDecide is set by the decision.
var transitions = map[edge]transition{
	{Idle, "?xml"}:      {Idle, doEmit},
	{Idle, "mediawiki"}: {InDump, doEmit},

	{InDump, "siteinfo"}:   {InSiteInfo, doEmit},
	{InDump, "page"}:       {InPage, doOpenPage},
	{InDump, "/mediawiki"}: {Idle, doStop},

	{InSiteInfo, "/siteinfo"}: {InDump, doEmit},
	{InSiteInfo, anyTag}:      {InSiteInfo, doEmit},
	{InSiteInfo, contentTag}:  {InSiteInfo, doEmit},

	{InPage, "title"}: {InPage, doTitle},
	{InPage, "ns"}:    {InPage, doBuffer},
	{InPage, "id"}:    {InPage, doDecide},

	{Emitting, "/page"}:    {InDump, doEmitPage},
	{Emitting, anyTag}:     {Emitting, doEmit},
	{Emitting, contentTag}: {Emitting, doEmit},

	{Discarding, "/page"}:    {InDump, doDrop},
	{Discarding, anyTag}:     {Discarding, doDrop},
	{Discarding, contentTag}: {Discarding, doDrop},
}

func lookup(s State, tag string, isTag bool) (transition, bool) {
	if !isTag {
		t, ok := transitions[edge{s, contentTag}]
		return t, ok
	}
	if t, ok := transitions[edge{s, tag}]; ok {
		return t, true
	}
	t, ok := transitions[edge{s, anyTag}]
	return t, ok
}

// DefaultProgressEvery is the number of pages between two progress
// reports if Filter.ProgressEvery is not set.
const DefaultProgressEvery = 1000

// Progress is reported to Filter.OnProgress during a run.
type Progress struct {
	Pages   uint64
	Hits    uint64
	ID      uint64
	Title   string
	Elapsed time.Duration
}

// Stats summarizes a filter run.
type Stats struct {
	// Pages is the number of pages with an <id>.
	Pages uint64
	// Hits is the number of pages written to the output.
	Hits  uint64
	Lines int
	// PeakPending is the maximum number of bytes buffered for a page head.
	PeakPending int
	Elapsed     time.Duration
}

// Filter copies a MediaWiki XML dump keeping only the selected pages. A
// zero value is valid for use and selects all pages. A Filter can be
// used for any number of runs, also concurrently as long as its Selector
// and callbacks can.
type Filter struct {
	// Select decides which pages are kept. If nil all pages are kept.
	Select Selector
	// Classifier used to find structural tags. If nil each run uses a new
	// LineClassifier.
	Classifier Classifier
	// ProgressEvery is the number of pages after which OnProgress is
	// called. Defaults to DefaultProgressEvery.
	ProgressEvery int
	// MaxLineSize limits the length of input lines, see NewLineReader.
	MaxLineSize int
	// OnProgress, if set, is called each ProgressEvery pages.
	OnProgress func(Progress)
	// OnSelect, if set, is called for each page that is written.
	OnSelect func(id uint64, title string)
}

// Run filters the dump read from src and writes the result to dst. The
// run ends with the closing </mediawiki> tag or at the end of src. Any
// structural problem in src aborts the run with an error that wraps a
// LineError. What was written to dst up to then is flushed.
func (f *Filter) Run(dst io.Writer, src io.Reader) (Stats, error) {
	r := f.newRun(dst, src)
	err := r.process()
	if ferr := r.out.Flush(); err == nil && ferr != nil {
		err = ferr
	}
	return r.stats(), err
}

// FilterString runs the filter on an in-memory dump.
func (f *Filter) FilterString(dump string) (string, Stats, error) {
	var sb strings.Builder
	stats, err := f.Run(&sb, strings.NewReader(dump))
	return sb.String(), stats, err
}

type pendingLine struct {
	text []byte
	next *pendingLine
}

// ListNext to implement intrusive singly linked list
func (pl *pendingLine) ListNext() islist.Node {
	if pl.next == nil {
		return nil
	}
	return pl.next
}

// SetListNext to implement intrusive singly linked list
func (pl *pendingLine) SetListNext(n islist.Node) {
	if n == nil {
		pl.next = nil
	} else {
		pl.next = n.(*pendingLine)
	}
}

// run is the state of a single Filter.Run.
type run struct {
	*Filter
	cls   Classifier
	sel   Selector
	every uint64
	lr    *LineReader
	out   *bufio.Writer
	start time.Time

	state       State
	pending     *islist.List
	pendingSize int
	peak        int
	plPool      *pendingLine
	title       string
	total, hits uint64
}

func (f *Filter) newRun(dst io.Writer, src io.Reader) *run {
	r := &run{
		Filter: f,
		cls:    f.Classifier,
		sel:    f.Select,
		every:  DefaultProgressEvery,
		lr:     NewLineReader(src, f.MaxLineSize),
		out:    bufio.NewWriterSize(dst, 256*1024),
		start:  time.Now(),
	}
	if r.cls == nil {
		r.cls = NewLineClassifier()
	}
	if r.sel == nil {
		r.sel = AllPages
	}
	if f.ProgressEvery > 0 {
		r.every = uint64(f.ProgressEvery)
	}
	return r
}

func (r *run) process() error {
	for r.lr.Next() {
		line := r.lr.Line()
		tag, isTag, err := r.cls.Classify(line)
		if err != nil {
			return r.lineError(err)
		}
		stop, err := r.step(tag, isTag, line, r.lr.Sep())
		if err != nil {
			return r.lineError(err)
		}
		if stop {
			return nil
		}
	}
	if err := r.lr.Err(); err != nil {
		return r.lineError(err)
	}
	if r.state != Idle {
		return LineError{
			Line:   r.lr.LineNo() + 1,
			Offset: r.lr.next,
			err:    StructureError{State: r.state, Tag: EOFTag},
		}
	}
	return nil
}

func (r *run) lineError(err error) error {
	return LineError{Line: r.lr.LineNo(), Offset: r.lr.Offset(), err: err}
}

func (r *run) step(tag Tag, isTag bool, line, sep []byte) (stop bool, err error) {
	name := contentTag
	if isTag {
		name = tag.Name
	}
	t, ok := lookup(r.state, name, isTag)
	if !ok {
		return false, StructureError{State: r.state, Tag: name}
	}
	r.state = t.next
	switch t.act {
	case doEmit:
		err = r.emit(line, sep)
	case doEmitPage:
		if err = r.emit(line, sep); err == nil {
			r.hits++
		}
	case doDrop:
	case doOpenPage:
		r.dropPending()
		r.title = ""
		r.buffer(line, sep)
	case doTitle:
		r.title = html.UnescapeString(tag.Text)
		r.buffer(line, sep)
	case doBuffer:
		r.buffer(line, sep)
	case doDecide:
		err = r.decide(tag, line, sep)
	case doStop:
		err = r.emit(line, sep)
		stop = true
	default:
		panic(fmt.Errorf("wikisnip: unknown filter action %d", t.act))
	}
	return stop, err
}

func (r *run) decide(tag Tag, line, sep []byte) error {
	id, err := strconv.ParseUint(tag.Text, 10, 64)
	if err != nil {
		return IDError{Text: tag.Text, err: err}
	}
	r.total++
	if r.OnProgress != nil && r.total%r.every == 0 {
		r.OnProgress(Progress{
			Pages:   r.total,
			Hits:    r.hits,
			ID:      id,
			Title:   r.title,
			Elapsed: time.Since(r.start),
		})
	}
	if !r.sel.Contains(id) {
		r.state = Discarding
		r.dropPending()
		return nil
	}
	r.state = Emitting
	if err = r.flushPending(); err != nil {
		return err
	}
	if err = r.emit(line, sep); err != nil {
		return err
	}
	if r.OnSelect != nil {
		r.OnSelect(id, r.title)
	}
	return nil
}

func (r *run) emit(line, sep []byte) error {
	if _, err := r.out.Write(line); err != nil {
		return err
	}
	_, err := r.out.Write(sep)
	return err
}

func (r *run) buffer(line, sep []byte) {
	pl := r.plPool
	if pl == nil {
		pl = new(pendingLine)
	} else {
		r.plPool = pl.next
		pl.next = nil
	}
	pl.text = append(append(pl.text[:0], line...), sep...)
	if r.pending == nil {
		r.pending = islist.New(pl)
	} else {
		r.pending.PushBack(pl)
	}
	r.pendingSize += len(pl.text)
	if r.pendingSize > r.peak {
		r.peak = r.pendingSize
	}
}

func (r *run) flushPending() error {
	if r.pending != nil {
		for n := r.pending.Front(); n != nil; n = n.ListNext() {
			if _, err := r.out.Write(n.(*pendingLine).text); err != nil {
				return err
			}
		}
	}
	r.dropPending()
	return nil
}

// dropPending clears the page head and returns its lines to the pool.
func (r *run) dropPending() {
	if r.pending == nil {
		return
	}
	n := r.pending.Front()
	for n != nil {
		pl := n.(*pendingLine)
		n = pl.ListNext()
		pl.next = r.plPool
		r.plPool = pl
	}
	r.pending = nil
	r.pendingSize = 0
}

func (r *run) pendingLen() int {
	if r.pending == nil {
		return 0
	}
	return r.pending.Len()
}

func (r *run) stats() Stats {
	return Stats{
		Pages:       r.total,
		Hits:        r.hits,
		Lines:       r.lr.LineNo(),
		PeakPending: r.peak,
		Elapsed:     time.Since(r.start),
	}
}
