package formatter

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
)

// xmlFormatter renders admin output as a sequence of nested elements,
// in the manner of rgw_admin's XMLFormatter: OpenArray opens a wrapping
// element named after the array, exactly as OpenObject does, and each item
// is nested inside it under the name it is opened with.
type xmlFormatter struct {
	buf    bytes.Buffer
	stack  []string
	pretty bool
}

func newXMLFormatter(pretty bool) *xmlFormatter {
	return &xmlFormatter{pretty: pretty}
}

func (f *xmlFormatter) indent() {
	if !f.pretty {
		return
	}
	f.buf.WriteByte('\n')
	for i := 0; i < len(f.stack); i++ {
		f.buf.WriteString("  ")
	}
}

func (f *xmlFormatter) openTag(name string) {
	f.indent()
	f.buf.WriteByte('<')
	f.buf.WriteString(name)
	f.buf.WriteByte('>')
	f.stack = append(f.stack, name)
}

func (f *xmlFormatter) OpenObject(name string) { f.openTag(name) }
func (f *xmlFormatter) OpenArray(name string)  { f.openTag(name) }

func (f *xmlFormatter) CloseSection() {
	if len(f.stack) == 0 {
		return
	}
	name := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	f.indent()
	f.buf.WriteString("</")
	f.buf.WriteString(name)
	f.buf.WriteByte('>')
}

func (f *xmlFormatter) leaf(name, value string) {
	f.indent()
	f.buf.WriteByte('<')
	f.buf.WriteString(name)
	f.buf.WriteByte('>')
	xml.EscapeText(&f.buf, []byte(value))
	f.buf.WriteString("</")
	f.buf.WriteString(name)
	f.buf.WriteByte('>')
}

func (f *xmlFormatter) DumpString(name, value string) { f.leaf(name, value) }
func (f *xmlFormatter) DumpInt(name string, value int64) {
	f.leaf(name, strconv.FormatInt(value, 10))
}
func (f *xmlFormatter) DumpBool(name string, value bool) {
	f.leaf(name, strconv.FormatBool(value))
}

func (f *xmlFormatter) Flush(w io.Writer) error {
	_, err := w.Write(f.buf.Bytes())
	f.buf.Reset()
	return err
}
