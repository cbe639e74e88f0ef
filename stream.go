package tablepb

import (
	"github.com/google/uuid"

	"github.com/tablepb/tablepb/internal/arena"
	"github.com/tablepb/tablepb/internal/debug"
	"github.com/tablepb/tablepb/internal/vm"
)

// Decoder is a resumable, non-blocking push-mode decoder (spec §4.6): each
// Push call absorbs whatever bytes are handed to it and reports whether the
// message is complete, needs more input, or has failed, without ever
// blocking on I/O itself.
type Decoder struct {
	parser *vm.Parser
	msg    *Message
}

// NewDecoder starts a push-mode decode of msg, whose record must already be
// allocated (e.g. via [Type.NewMessage]) on the same arena msg belongs to.
func (t *Type) NewDecoder(msg *Message, options ...UnmarshalOption) *Decoder {
	opts := t.opts
	for _, opt := range options {
		opt(&opts)
	}
	parser := vm.NewParser(msg.a, msg.rec, t.compiled.Decode, opts.maxDepth)
	if debug.Enabled {
		// A trace id only costs anything when debug logging is on; it exists
		// purely to correlate a session's chunk deliveries across log lines
		// when several Decoders are in flight on different goroutines.
		parser.TraceID = uuid.NewString()
	}
	return &Decoder{
		parser: parser,
		msg:    msg,
	}
}

// Push feeds chunk to the decoder. done reports whether the message is now
// fully decoded; err is non-nil iff the input was malformed or violated a
// configured limit, in which case the Decoder must not be used again.
func (d *Decoder) Push(chunk []byte) (done bool, err error) {
	p := d.parser.Push(chunk)
	switch p.Kind {
	case vm.ProgressDone:
		return true, nil
	case vm.ProgressFailed:
		return false, wrapError(p.Err)
	default:
		return false, nil
	}
}

// Finish reports whether the stream ended on a well-formed message
// boundary (spec §4.6): no frame left open, no partial field pending.
func (d *Decoder) Finish() error {
	return wrapError(d.parser.Finish())
}

// Message returns the handle Push has been decoding into. It is valid to
// call at any point, including before the decode completes, but fields not
// yet decoded will read as absent.
func (d *Decoder) Message() *Message { return d.msg }

// Unmarshal decodes the flat buffer data into a freshly allocated message on
// a (spec §4.5's degenerate, single-chunk case of push-mode decoding).
func (t *Type) Unmarshal(a *arena.Arena, data []byte, options ...UnmarshalOption) (*Message, error) {
	msg := t.NewMessage(a)
	dec := t.NewDecoder(msg, options...)
	if _, err := dec.Push(data); err != nil {
		return nil, err
	}
	if err := dec.Finish(); err != nil {
		return nil, err
	}
	return msg, nil
}
