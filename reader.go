package rowstream

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Reader is the pull side of a session - sequential access to the rows of one
// executed statement
//
// exactly one call may be outstanding per Reader at any time; a second concurrent
// call fails with ErrConcurrentCall
type Reader interface {
	// Next returns the next row
	//
	// returns io.EOF at end-of-stream and a ProtocolError if the session reported
	// an error (after all previously buffered rows have been returned)
	Next(ctx context.Context) (Record, error)
	// Stop cancels the in-flight statement and waits for the session to confirm
	//
	// idempotent once the reader is terminal - an error arriving after Stop is
	// requested is discarded and Stop resolves cleanly
	Stop(ctx context.Context) error
	// All drains the remaining rows into a slice
	//
	// options can be a Limiter
	All(ctx context.Context, options ...any) ([]Record, error)
	// Iterate iterates over the remaining rows and calls the supplied handler with each row
	//
	// iteration stops at end-of-stream - or an error is encountered - or the supplied
	// handler returns false for `cont` (continue)
	Iterate(ctx context.Context, handler func(rec Record) (cont bool, err error)) error
	// WriteJSON drains the remaining rows and writes them as a JSON array to the supplied writer
	//
	// options can be a Limiter
	WriteJSON(ctx context.Context, writer io.Writer, options ...any) error
}

// NewReader opens a reader over the supplied session
//
// the statement is executed immediately; rows are buffered up to the configured
// Watermarks.High, pausing the transport until the caller catches up
//
// options can be any of: Watermarks, ReleaseHook, ErrorTranslator or zerolog.Logger
func NewReader(sess Session, options ...any) (Reader, error) {
	if sess == nil {
		return nil, UsageError("nil session")
	}
	cfg, err := newSettings(options...)
	if err != nil {
		return nil, err
	}
	result := &reader{
		sess:       sess,
		release:    cfg.release,
		translator: cfg.translator,
	}
	result.req = newRequest(result.onRow, result.onCompleted, nil)
	result.buf = newRowBuffer(cfg.marks, sess)
	result.log = cfg.log.With().Str("request", result.req.id.String()).Logger()
	result.log.Debug().Int("low", cfg.marks.Low).Int("high", cfg.marks.High).Msg("reader open")
	sess.SetErrorHandler(result.onError)
	sess.Execute(result.req, nil)
	return result, nil
}

// MustNewReader is the same as NewReader, except it panics on error
func MustNewReader(sess Session, options ...any) Reader {
	r, err := NewReader(sess, options...)
	if err != nil {
		panic(err)
	}
	return r
}

type reader struct {
	mutex      sync.Mutex
	sess       Session
	req        *Request
	buf        *rowBuffer
	wtr        *waiter
	cachedErr  error
	done       bool
	stopped    bool
	cancelled  bool
	terminal   bool
	release    ReleaseHook
	translator ErrorTranslator
	log        zerolog.Logger
}

var _ Reader = (*reader)(nil)

func (r *reader) Next(ctx context.Context) (Record, error) {
	r.mutex.Lock()
	if r.wtr != nil {
		r.mutex.Unlock()
		return nil, ErrConcurrentCall
	}
	if r.terminal {
		r.mutex.Unlock()
		return nil, io.EOF
	}
	if r.buf.len() > 0 {
		rec := r.buf.shift()
		r.mutex.Unlock()
		return rec, nil
	}
	if r.cachedErr != nil {
		err := r.cachedErr
		r.cachedErr = nil
		fire := r.finishLocked()
		r.mutex.Unlock()
		r.cleanup(fire)
		return nil, r.fail(err)
	}
	if r.done {
		fire := r.finishLocked()
		r.mutex.Unlock()
		r.cleanup(fire)
		return nil, io.EOF
	}
	w := newWaiter()
	r.wtr = w
	r.mutex.Unlock()
	select {
	case out := <-w.ch:
		return r.settle(out)
	case <-ctx.Done():
		if out, resolved := r.abandon(w); resolved {
			return r.settle(out)
		}
		return nil, ctx.Err()
	}
}

func (r *reader) Stop(ctx context.Context) error {
	r.mutex.Lock()
	if r.wtr != nil {
		r.mutex.Unlock()
		return ErrConcurrentCall
	}
	if r.terminal {
		r.mutex.Unlock()
		return nil
	}
	if r.done {
		fire := r.finishLocked()
		r.mutex.Unlock()
		r.cleanup(fire)
		return nil
	}
	r.stopped = true
	r.cancelled = true
	w := newWaiter()
	r.wtr = w
	r.mutex.Unlock()
	r.log.Debug().Msg("cancel")
	r.sess.Cancel()
	select {
	case <-w.ch:
		// completion confirmed the cancellation - any carried error was discarded
		r.mutex.Lock()
		fire := r.finishLocked()
		r.mutex.Unlock()
		r.cleanup(fire)
		return nil
	case <-ctx.Done():
		if _, resolved := r.abandon(w); resolved {
			r.mutex.Lock()
			fire := r.finishLocked()
			r.mutex.Unlock()
			r.cleanup(fire)
			return nil
		}
		return ctx.Err()
	}
}

// settle turns a resolved outcome into the Next result
func (r *reader) settle(out outcome) (Record, error) {
	if out.err != nil {
		r.mutex.Lock()
		fire := r.finishLocked()
		r.mutex.Unlock()
		r.cleanup(fire)
		return nil, r.fail(out.err)
	}
	if out.end {
		r.mutex.Lock()
		fire := r.finishLocked()
		r.mutex.Unlock()
		r.cleanup(fire)
		return nil, io.EOF
	}
	return out.rec, nil
}

// abandon withdraws the outstanding waiter after ctx cancellation
//
// if the waiter was already resolved concurrently, the resolution wins and is
// returned; otherwise the statement is cancelled and the reader becomes terminal
func (r *reader) abandon(w *waiter) (outcome, bool) {
	r.mutex.Lock()
	if r.wtr != w {
		// resolved just as ctx fired - the outcome is already in the slot
		r.mutex.Unlock()
		return <-w.ch, true
	}
	r.wtr = nil
	r.stopped = true
	cancel := !r.cancelled
	r.cancelled = true
	r.req.release()
	fire := r.finishLocked()
	r.mutex.Unlock()
	if cancel {
		r.log.Debug().Msg("abandoned, cancelling")
		r.sess.Cancel()
	}
	r.cleanup(fire)
	return outcome{}, false
}

// finishLocked marks the reader terminal, reporting whether this was the
// transition (cleanup runs exactly once, on every exit path)
func (r *reader) finishLocked() bool {
	if r.terminal {
		return false
	}
	r.terminal = true
	return true
}

func (r *reader) cleanup(first bool) {
	if first {
		r.sess.SetErrorHandler(nil)
		if r.release != nil {
			r.log.Debug().Msg("released")
			r.release()
		}
	}
}

func (r *reader) fail(err error) error {
	return r.translator.Translate(&ProtocolError{Err: err})
}

// onRow handles a row event from the session
func (r *reader) onRow(rec Record) {
	r.mutex.Lock()
	if r.stopped || r.terminal {
		// a row arriving after cancellation is never enqueued or delivered
		r.mutex.Unlock()
		return
	}
	if w := r.wtr; w != nil {
		// an outstanding pull takes the row directly, bypassing the buffer
		r.wtr = nil
		w.resolve(rec)
		r.mutex.Unlock()
		return
	}
	r.buf.push(rec)
	buffered := r.buf.len()
	r.mutex.Unlock()
	r.log.Debug().Int("buffered", buffered).Msg("row buffered")
}

// onCompleted handles the completion event from the session
func (r *reader) onCompleted(err error, _ int64) {
	r.mutex.Lock()
	r.done = true
	r.req.release()
	w := r.wtr
	r.wtr = nil
	if r.stopped {
		// cancellation wins - a carried error is discarded and the stop (or an
		// abandoned pull) resolves as clean end-of-stream
		if w != nil {
			w.resolveEnd()
		}
		r.mutex.Unlock()
		return
	}
	if err != nil {
		if w != nil {
			w.resolveErr(err)
		} else {
			// deferred until all buffered rows have been consumed
			r.cachedErr = err
		}
		r.mutex.Unlock()
		return
	}
	if w != nil {
		w.resolveEnd()
	}
	r.mutex.Unlock()
	r.log.Debug().Msg("completed")
}

// onError handles a session-scoped error - surfaced on the next pull once all
// previously buffered rows have been consumed
func (r *reader) onError(err error) {
	r.mutex.Lock()
	if r.stopped || r.terminal || r.done {
		// cancellation (or completion) wins - a late error is discarded
		r.mutex.Unlock()
		return
	}
	if w := r.wtr; w != nil {
		r.wtr = nil
		w.resolveErr(err)
	} else if r.cachedErr == nil {
		r.cachedErr = err
	}
	r.mutex.Unlock()
}
