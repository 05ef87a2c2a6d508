package formatter

import (
	"bytes"
	"io"
	"strconv"
)

// jsonFrame tracks one open object/array so closeSection knows whether a
// trailing comma is needed before the next sibling and which bracket to
// emit on close.
type jsonFrame struct {
	isArray    bool
	wroteFirst bool
}

type jsonFormatter struct {
	buf    bytes.Buffer
	stack  []jsonFrame
	pretty bool
}

func newJSONFormatter(pretty bool) *jsonFormatter {
	return &jsonFormatter{pretty: pretty}
}

func (f *jsonFormatter) indent() {
	if !f.pretty {
		return
	}
	f.buf.WriteByte('\n')
	for i := 0; i < len(f.stack); i++ {
		f.buf.WriteString("  ")
	}
}

func (f *jsonFormatter) beforeValue(name string) {
	if len(f.stack) > 0 {
		top := &f.stack[len(f.stack)-1]
		if top.wroteFirst {
			f.buf.WriteByte(',')
		}
		top.wroteFirst = true
	}
	f.indent()
	if len(f.stack) == 0 || !f.stack[len(f.stack)-1].isArray {
		f.buf.WriteString(strconv.Quote(name))
		f.buf.WriteByte(':')
		if f.pretty {
			f.buf.WriteByte(' ')
		}
	}
}

func (f *jsonFormatter) OpenObject(name string) {
	f.beforeValue(name)
	f.buf.WriteByte('{')
	f.stack = append(f.stack, jsonFrame{})
}

func (f *jsonFormatter) OpenArray(name string) {
	f.beforeValue(name)
	f.buf.WriteByte('[')
	f.stack = append(f.stack, jsonFrame{isArray: true})
}

func (f *jsonFormatter) CloseSection() {
	if len(f.stack) == 0 {
		return
	}
	top := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	if f.pretty && top.wroteFirst {
		f.buf.WriteByte('\n')
		for i := 0; i < len(f.stack); i++ {
			f.buf.WriteString("  ")
		}
	}
	if top.isArray {
		f.buf.WriteByte(']')
	} else {
		f.buf.WriteByte('}')
	}
}

func (f *jsonFormatter) DumpString(name, value string) {
	f.beforeValue(name)
	f.buf.WriteString(strconv.Quote(value))
}

func (f *jsonFormatter) DumpInt(name string, value int64) {
	f.beforeValue(name)
	f.buf.WriteString(strconv.FormatInt(value, 10))
}

func (f *jsonFormatter) DumpBool(name string, value bool) {
	f.beforeValue(name)
	f.buf.WriteString(strconv.FormatBool(value))
}

func (f *jsonFormatter) Flush(w io.Writer) error {
	_, err := w.Write(f.buf.Bytes())
	f.buf.Reset()
	return err
}
