/*
Package wikisnip extracts pages from MediaWiki XML dumps. Given a set of
page identifiers the filter copies the dump's <mediawiki> wrapper, its
<siteinfo> block and exactly those pages whose <id> is in the set. All
other pages are dropped.

Dumps of the larger Wikipedias are tens of gigabytes when decompressed.
The filter therefore never parses XML. It reads the dump line by line
and only looks at the first tag at the start of a line:

	<mediawiki xmlns="http://www.mediawiki.org/xml/export-0.10/" …>
	  <siteinfo>
	    …
	  </siteinfo>
	  <page>
	    <title>AccessibleComputing</title>
	    <ns>0</ns>
	    <id>10</id>
	    <redirect title="Computer accessibility" />
	    <revision>
	      …
	    </revision>
	  </page>
	  …
	</mediawiki>

Each of the structural tags mediawiki, siteinfo, page, title, ns and id
has to be on a line of its own, as it is in all dumps published by
Wikimedia. The lines of a page up to its <id> line are held back. When
the <id> is known the held back lines are either written together with
the rest of the page or dropped with it. Thus the memory needed does not
depend on the size of the dump.

# States

A run of a Filter is a small automaton:

	Idle ──<mediawiki>──▶ InDump ──<siteinfo>──▶ InSiteInfo ──</siteinfo>──▶ InDump
	InDump ──<page>──▶ InPage ──<id> selected──▶ Emitting ──</page>──▶ InDump
	                   InPage ──<id> dropped───▶ Discarding ──</page>──▶ InDump
	InDump ──</mediawiki>──▶ Idle (end of run)

Content lines, i.e. lines not starting with a tag, are copied in
InSiteInfo and Emitting and dropped in Discarding. Anything else the
automaton does not expect stops the run with an error that tells the
line, the state and the tag. The filter does not try to recover from
broken input.

# Line Endings

Lines are written with exactly the line separator they had in the input.
The output of a selected page is byte by byte identical to its input.
*/
package wikisnip
