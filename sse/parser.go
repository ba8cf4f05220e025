package sse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const dataField = "data:"

var frameEnd = []byte("\n\n")

// Parser splits a chunked event stream into frame payloads.
// It is not safe for concurrent use.
type Parser struct {
	buf  []byte
	scan int  // offset in buf where the terminator search resumes
	cr   bool // the last chunk ended in '\r', held back from buf
}

// NewParser creates an empty parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends chunk to the pending input and returns the payloads of every
// frame it completed. Frames without data lines produce nothing.
func (p *Parser) Feed(chunk string) []string {
	if p.cr {
		chunk = "\r" + chunk
		p.cr = false
	}
	if strings.HasSuffix(chunk, "\r") {
		chunk = chunk[:len(chunk)-1]
		p.cr = true
	}
	p.buf = append(p.buf, strings.ReplaceAll(chunk, "\r\n", "\n")...)

	var out []string
	for {
		i := bytes.Index(p.buf[p.scan:], frameEnd)
		if i < 0 {
			p.scan = max(len(p.buf)-1, 0)
			return out
		}
		end := p.scan + i
		if data, ok := payload(string(p.buf[:end])); ok {
			out = append(out, data)
		}
		p.buf = p.buf[end+len(frameEnd):]
		p.scan = 0
	}
}

// Flush returns the payload of a trailing frame that never received its
// terminator, and resets the parser. Call it once the stream has ended.
func (p *Parser) Flush() []string {
	rest := string(p.buf)
	*p = Parser{}
	if data, ok := payload(rest); ok {
		return []string{data}
	}
	return nil
}

func payload(frame string) (string, bool) {
	var b strings.Builder
	for _, line := range strings.Split(frame, "\n") {
		v, ok := strings.CutPrefix(line, dataField)
		if !ok {
			continue
		}
		b.WriteString(strings.TrimPrefix(v, " "))
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}

// Read consumes r until EOF, calling fn with every payload in arrival order.
// The trailing unterminated frame is flushed at EOF. Read stops early when
// ctx is done, when fn returns an error, or when r fails.
func Read(ctx context.Context, r io.Reader, fn func(data string) error) error {
	p := NewParser()
	buf := make([]byte, 32*1024)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.Read(buf)
		if n > 0 {
			for _, data := range p.Feed(string(buf[:n])) {
				if ferr := fn(data); ferr != nil {
					return ferr
				}
			}
		}

		if errors.Is(err, io.EOF) {
			for _, data := range p.Flush() {
				if ferr := fn(data); ferr != nil {
					return ferr
				}
			}
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("failed to read event stream: %w", err)
		}
	}
}
