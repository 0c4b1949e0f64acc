package apiclient

import (
	"bufio"
	"bytes"
	"io"
	"iter"
)

// maxLine bounds a single streamed line.
const maxLine = 1 << 20

// Event is one server-sent event.
type Event struct {
	Name string
	Data []byte
}

// SSE reads server-sent events from r. Multi-line data fields are joined
// with newlines; comments and unknown fields are ignored. The sequence ends
// at EOF or on the first read error.
func SSE(r io.Reader) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64<<10), maxLine)

		var ev Event
		var data [][]byte
		flush := func() bool {
			if len(data) == 0 {
				ev = Event{}
				return true
			}
			ev.Data = bytes.Join(data, []byte("\n"))
			out := ev
			ev, data = Event{}, nil
			return yield(out, nil)
		}

		for sc.Scan() {
			line := sc.Bytes()
			if len(line) == 0 {
				if !flush() {
					return
				}
				continue
			}
			if line[0] == ':' {
				continue
			}
			field, value, _ := bytes.Cut(line, []byte(":"))
			value = bytes.TrimPrefix(value, []byte(" "))
			switch string(field) {
			case "event":
				ev.Name = string(value)
			case "data":
				data = append(data, bytes.Clone(value))
			}
		}
		if err := sc.Err(); err != nil {
			yield(Event{}, err)
			return
		}
		flush()
	}
}

// Lines yields each non-blank line of r, as used by newline-delimited JSON
// streams.
func Lines(r io.Reader) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64<<10), maxLine)
		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			if !yield(bytes.Clone(line), nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(nil, err)
		}
	}
}
