// Package inject splices a snippet of markup into HTML documents right
// before the closing head tag while leaving every other byte untouched.
//
// Injection takes two passes over the document. The first pass tokenizes
// just far enough to find where </head> starts; the second pass copies the
// raw bytes around that point. The document is reopened between passes so
// the source never has to be seekable.
package inject

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/conneroisu/autoreload/internal/errors"
)

// sniffLen is how many leading bytes are inspected to guess the encoding.
const sniffLen = 1024

// Opener opens a fresh reader positioned at the start of the document.
type Opener func() (io.ReadCloser, error)

// Cursor is where injection happens in one document.
type Cursor struct {
	// Offset is the byte offset at which </head> begins, or -1 when the
	// document cannot take an injection.
	Offset int64
	// Charset is the canonical name of the sniffed document encoding, empty
	// when nothing in the document indicates one.
	Charset string
}

// Found reports whether the cursor points at a closing head tag.
func (c Cursor) Found() bool { return c.Offset >= 0 }

// Injector inserts a fixed snippet into HTML documents.
type Injector struct {
	snippet []byte
}

// New returns an injector for snippet.
func New(snippet string) *Injector {
	return &Injector{snippet: []byte(snippet)}
}

// Snippet returns the markup inserted into documents.
func (in *Injector) Snippet() string { return string(in.snippet) }

// Locate scans r until the head element closes and returns the offset of
// the closing tag. It returns ErrHeadNotFound when the document has no
// closing head tag, ErrMalformed when the markup before it does not nest,
// and ErrIncompatibleEncoding for documents that are not ASCII compatible.
// Any other error comes from reading r.
func (in *Injector) Locate(r io.Reader) (Cursor, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	prefix, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return Cursor{Offset: -1}, fmt.Errorf("sniff encoding: %w", err)
	}

	name := sniffCharset(prefix)
	cursor := Cursor{Offset: -1, Charset: name}
	if strings.HasPrefix(name, "utf-16") {
		return cursor, fmt.Errorf("%s: %w", name, errors.ErrIncompatibleEncoding)
	}

	offset, err := locateHeadClose(br)
	if err != nil {
		return cursor, err
	}
	cursor.Offset = offset
	return cursor, nil
}

// sniffCharset guesses the document encoding from its first bytes the way
// a browser would without a Content-Type header. It returns "" when the
// guess is only the windows-1252 default.
func sniffCharset(prefix []byte) string {
	enc, name, certain := charset.DetermineEncoding(prefix, "")
	if canonical, err := htmlindex.Name(enc); err == nil {
		name = canonical
	}
	if !certain && name == "windows-1252" {
		return ""
	}
	return name
}

// locateHeadClose tokenizes r and returns the offset where </head> starts.
// Start tags are tracked on a stack so an end tag that does not match the
// innermost open element counts as malformed markup.
func locateHeadClose(r io.Reader) (int64, error) {
	z := html.NewTokenizer(r)
	var (
		offset int64
		open   []string
	)

	for {
		tt := z.Next()
		raw := z.Raw()

		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return -1, fmt.Errorf("scan document: %w", err)
			}
			if len(open) > 0 && contains(open, "head") {
				return -1, fmt.Errorf("head element left open: %w", errors.ErrMalformed)
			}
			return -1, errors.ErrHeadNotFound

		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "body" {
				return -1, errors.ErrHeadNotFound
			}
			if !voidElements[tag] {
				open = append(open, tag)
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			top := ""
			if len(open) > 0 {
				top = open[len(open)-1]
			}

			switch {
			case tag == "head" && (top == "head" || !contains(open, "head")):
				return offset, nil
			case tag == top:
				open = open[:len(open)-1]
			default:
				return -1, fmt.Errorf("unexpected </%s> inside <%s>: %w", tag, top, errors.ErrMalformed)
			}
		}

		offset += int64(len(raw))
	}
}

func contains(stack []string, tag string) bool {
	for _, t := range stack {
		if t == tag {
			return true
		}
	}
	return false
}

// voidElements never have an end tag and are not pushed on the stack.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Inject writes the document produced by open to w with the snippet
// inserted before </head>. When the head cannot be located the document is
// copied unchanged and the returned cursor reports !Found with a nil error.
// Errors from open are returned untouched so callers can tell a missing
// document apart from an unreadable one.
func (in *Injector) Inject(w io.Writer, open Opener) (Cursor, error) {
	src, err := open()
	if err != nil {
		return Cursor{Offset: -1}, err
	}
	cursor, err := in.Locate(src)
	src.Close()
	if err != nil && !errors.IsDegradable(err) {
		return cursor, err
	}

	src, err = open()
	if err != nil {
		return cursor, fmt.Errorf("reopen document: %w", err)
	}
	defer src.Close()

	if !cursor.Found() {
		if _, err := io.Copy(w, src); err != nil {
			return cursor, fmt.Errorf("copy document: %w", err)
		}
		return cursor, nil
	}

	if _, err := io.CopyN(w, src, cursor.Offset); err != nil {
		return cursor, fmt.Errorf("copy document head: %w", err)
	}
	if _, err := w.Write(in.snippet); err != nil {
		return cursor, fmt.Errorf("write snippet: %w", err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return cursor, fmt.Errorf("copy document tail: %w", err)
	}
	return cursor, nil
}

// InjectBytes is Inject for an in-memory document. It never fails; a
// document that cannot take the snippet is returned as is.
func (in *Injector) InjectBytes(doc []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(doc) + len(in.snippet))

	cursor, err := in.Inject(&buf, func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(doc)), nil
	})
	if err != nil || !cursor.Found() {
		return doc
	}
	return buf.Bytes()
}
