package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

const (
	// defaultErrorBuffer is used when Lines.BufferSize is zero to set the
	// capacity of the returned channels.
	defaultErrorBuffer = 10

	// maxLineSize bounds a single JSON document.
	maxLineSize = 4 << 20
)

// ErrInvalidJSON is reported for input lines that are not valid JSON.
var ErrInvalidJSON = errors.New("invalid JSON")

// Lines reads newline-delimited JSON documents and turns each into a
// Record keyed by one of its fields.
//
// Blank lines are skipped. Lines that are not valid JSON are reported on the
// error channel as an Error and skipped; reading continues.
type Lines struct {
	// Reader is the input. It is not closed by Lines.
	Reader io.Reader

	// KeyField is the top-level field whose value becomes the record key.
	// Numbers and booleans are converted to their JSON text. Documents
	// without the field get a random UUID key, so they are never
	// superseded.
	KeyField string

	// BufferSize controls the size of the output buffers (default: 10).
	BufferSize int
}

// Read starts reading in a goroutine. Both returned channels are closed when
// the input is exhausted, a read error occurs or ctx is canceled.
func (l *Lines) Read(ctx context.Context) (<-chan Record[string, *Document], <-chan error) {
	size := defaultErrorBuffer
	if l.BufferSize > 0 {
		size = l.BufferSize
	}

	out := make(chan Record[string, *Document], size)
	errs := make(chan error, size)

	go func() {
		defer close(out)
		defer close(errs)

		if l.Reader == nil {
			return
		}

		scanner := bufio.NewScanner(l.Reader)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		lineNo := 0
		for scanner.Scan() {
			lineNo++

			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			if !jsoniter.Valid(line) {
				if !send(ctx, errs, error(Error{Line: lineNo, Err: ErrInvalidJSON})) {
					return
				}
				continue
			}

			body := make([]byte, len(line))
			copy(body, line)

			doc := &Document{Key: l.key(body), Body: body}
			if !send(ctx, out, Record[string, *Document]{Key: doc.Key, Value: doc}) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			send(ctx, errs, error(Error{Line: lineNo + 1, Err: err}))
		}
	}()

	return out, errs
}

func (l *Lines) key(body []byte) string {
	if l.KeyField != "" {
		v := jsoniter.Get(body, l.KeyField)
		switch v.ValueType() {
		case jsoniter.StringValue, jsoniter.NumberValue, jsoniter.BoolValue:
			if k := v.ToString(); k != "" {
				return k
			}
		}
	}

	return uuid.NewString()
}

// send delivers v unless ctx is canceled first.
func send[T any](ctx context.Context, ch chan<- T, v T) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- v:
		return true
	}
}
