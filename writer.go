package rowstream

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

// Writer is the push side of a session - drives a statement through
// prepare, per-row execute (sequential) and unprepare
//
// no execute is ever issued before the session confirms the prepare; a row written
// while still preparing is held (at most one, since only one call may be outstanding)
// and executed once the prepared confirmation arrives
//
// exactly one call may be outstanding per Writer at any time; a second concurrent
// call fails with ErrConcurrentCall
type Writer interface {
	// Write translates the row into positionally-named parameter bindings and
	// executes the prepared statement with them
	//
	// row can be a []any (ordered sequence) or a map[string]any / Record
	// (key-ordered mapping); fails with a ProtocolError if the session reports
	// an error
	Write(ctx context.Context, row any) error
	// Close ends the row stream and releases the prepared statement
	//
	// if still preparing, the unprepare is deferred until the prepared
	// confirmation arrives; idempotent once the writer is terminal
	Close(ctx context.Context) error
	// Affected returns the total affected row count accumulated from execute completions
	Affected() int64
}

// NewWriter opens a writer over the supplied session
//
// the statement is prepared immediately; binder is required - its absence is a
// synchronous setup failure
//
// options can be any of: ReleaseHook, ErrorTranslator or zerolog.Logger
func NewWriter(sess Session, binder ParamBinder, options ...any) (Writer, error) {
	if sess == nil {
		return nil, UsageError("nil session")
	}
	if binder == nil {
		return nil, UsageError("no parameter binder")
	}
	cfg, err := newSettings(options...)
	if err != nil {
		return nil, err
	}
	result := &writer{
		sess:       sess,
		bind:       binder,
		preparing:  true,
		release:    cfg.release,
		translator: cfg.translator,
	}
	result.req = newRequest(nil, result.onCompleted, result.onPrepared)
	result.log = cfg.log.With().Str("request", result.req.id.String()).Logger()
	result.log.Debug().Msg("writer open, preparing")
	sess.SetErrorHandler(result.onError)
	sess.Prepare(result.req)
	return result, nil
}

// MustNewWriter is the same as NewWriter, except it panics on error
func MustNewWriter(sess Session, binder ParamBinder, options ...any) Writer {
	w, err := NewWriter(sess, binder, options...)
	if err != nil {
		panic(err)
	}
	return w
}

type writer struct {
	mutex           sync.Mutex
	sess            Session
	req             *Request
	bind            ParamBinder
	wtr             *waiter
	preparing       bool
	prepareAcked    bool
	closeOnPrepared bool
	pending         []Parameter
	hasPending      bool
	prepareErr      error
	cachedErr       error
	done            bool
	terminal        bool
	affected        int64
	release         ReleaseHook
	translator      ErrorTranslator
	log             zerolog.Logger
}

var _ Writer = (*writer)(nil)

func (w *writer) Write(ctx context.Context, row any) error {
	params, err := w.bindRow(row)
	if err != nil {
		return err
	}
	w.mutex.Lock()
	if w.wtr != nil {
		w.mutex.Unlock()
		return ErrConcurrentCall
	}
	if w.terminal || w.done {
		w.mutex.Unlock()
		return UsageError("writer closed")
	}
	if w.prepareErr != nil {
		err = w.prepareErr
		w.mutex.Unlock()
		return w.fail(err)
	}
	if w.cachedErr != nil {
		err = w.cachedErr
		w.cachedErr = nil
		w.mutex.Unlock()
		return w.fail(err)
	}
	wt := newWaiter()
	w.wtr = wt
	if w.preparing {
		// held until the prepared confirmation - never execute while preparing
		w.pending = params
		w.hasPending = true
		w.mutex.Unlock()
		w.log.Debug().Msg("write queued while preparing")
	} else {
		w.mutex.Unlock()
		w.log.Debug().Int("params", len(params)).Msg("execute")
		w.sess.Execute(w.req, params)
	}
	select {
	case out := <-wt.ch:
		return w.settle(out)
	case <-ctx.Done():
		if out, resolved := w.abandon(wt); resolved {
			return w.settle(out)
		}
		return ctx.Err()
	}
}

func (w *writer) Close(ctx context.Context) error {
	w.mutex.Lock()
	if w.wtr != nil {
		w.mutex.Unlock()
		return ErrConcurrentCall
	}
	if w.terminal {
		w.mutex.Unlock()
		return nil
	}
	if err := w.prepareErr; err != nil {
		w.done = true
		w.req.release()
		fire := w.finishLocked()
		w.mutex.Unlock()
		w.sess.SetErrorHandler(nil)
		w.fireRelease(fire)
		return w.fail(err)
	}
	if err := w.cachedErr; err != nil {
		w.cachedErr = nil
		w.done = true
		w.req.release()
		fire := w.finishLocked()
		w.mutex.Unlock()
		w.sess.SetErrorHandler(nil)
		w.fireRelease(fire)
		return w.fail(err)
	}
	w.done = true
	wt := newWaiter()
	w.wtr = wt
	deferred := w.preparing
	if deferred {
		w.closeOnPrepared = true
	}
	w.mutex.Unlock()
	w.sess.SetErrorHandler(nil)
	if deferred {
		w.log.Debug().Msg("close deferred until prepared")
	} else {
		w.log.Debug().Msg("unprepare")
		w.sess.Unprepare(w.req)
	}
	select {
	case out := <-wt.ch:
		w.mutex.Lock()
		w.req.release()
		fire := w.finishLocked()
		w.mutex.Unlock()
		w.fireRelease(fire)
		if out.err != nil {
			return w.fail(out.err)
		}
		return nil
	case <-ctx.Done():
		if out, resolved := w.abandon(wt); resolved {
			w.mutex.Lock()
			w.req.release()
			fire := w.finishLocked()
			w.mutex.Unlock()
			w.fireRelease(fire)
			if out.err != nil {
				return w.fail(out.err)
			}
			return nil
		}
		return ctx.Err()
	}
}

func (w *writer) Affected() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.affected
}

// bindRow translates a row into positionally-named parameter bindings - p1..pN for
// ordered sequences, sorted key order for mappings
func (w *writer) bindRow(row any) ([]Parameter, error) {
	switch rt := row.(type) {
	case []any:
		params := make([]Parameter, 0, len(rt))
		for i, v := range rt {
			p, err := w.bind("p"+strconv.Itoa(i+1), v)
			if err != nil {
				return nil, err
			}
			params = append(params, p)
		}
		return params, nil
	case map[string]any:
		return w.bindMapped(rt)
	case Record:
		return w.bindMapped(rt)
	case nil:
		return nil, UsageError("nil row")
	default:
		return nil, UsageError(fmt.Sprintf("unsupported row type: %T", row))
	}
}

func (w *writer) bindMapped(row map[string]any) ([]Parameter, error) {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	params := make([]Parameter, 0, len(keys))
	for _, k := range keys {
		p, err := w.bind(k, row[k])
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

// settle turns a resolved outcome into the Write result
func (w *writer) settle(out outcome) error {
	if out.err != nil {
		return w.fail(out.err)
	}
	return nil
}

// abandon withdraws the outstanding waiter after ctx cancellation
func (w *writer) abandon(wt *waiter) (outcome, bool) {
	w.mutex.Lock()
	if w.wtr != wt {
		w.mutex.Unlock()
		return <-wt.ch, true
	}
	w.wtr = nil
	w.done = true
	w.req.release()
	fire := w.finishLocked()
	w.mutex.Unlock()
	w.log.Debug().Msg("abandoned, cancelling")
	w.sess.Cancel()
	w.sess.SetErrorHandler(nil)
	w.fireRelease(fire)
	return outcome{}, false
}

func (w *writer) finishLocked() bool {
	if w.terminal {
		return false
	}
	w.terminal = true
	return w.release != nil
}

func (w *writer) fireRelease(fire bool) {
	if fire {
		w.log.Debug().Msg("released")
		w.release()
	}
}

func (w *writer) fail(err error) error {
	return w.translator.Translate(&ProtocolError{Err: err})
}

// onPrepared handles the prepared confirmation from the session
func (w *writer) onPrepared() {
	w.mutex.Lock()
	w.preparing = false
	var cmd func()
	if w.closeOnPrepared {
		w.closeOnPrepared = false
		cmd = func() {
			w.log.Debug().Msg("prepared, unprepare")
			w.sess.Unprepare(w.req)
		}
	} else if w.hasPending && w.wtr != nil {
		// a pending set is only valid while its write is still outstanding
		params := w.pending
		w.pending = nil
		w.hasPending = false
		cmd = func() {
			w.log.Debug().Int("params", len(params)).Msg("prepared, executing queued write")
			w.sess.Execute(w.req, params)
		}
	}
	w.mutex.Unlock()
	if cmd != nil {
		cmd()
	}
}

// onCompleted handles a completion event from the session
//
// the first completion is the prepare ack and is swallowed - the prepared event,
// not the ack, drives the next step; each later completion resolves the currently
// outstanding write/close
func (w *writer) onCompleted(err error, affected int64) {
	w.mutex.Lock()
	if !w.prepareAcked {
		w.prepareAcked = true
		if err != nil {
			// error during prepare arriving on the completion channel - an
			// explicit prepare-failed state, no execute or unprepare follows
			w.prepareErr = err
			w.preparing = false
			w.closeOnPrepared = false
			w.pending = nil
			w.hasPending = false
			if wt := w.wtr; wt != nil {
				w.wtr = nil
				wt.resolveErr(err)
			}
			w.mutex.Unlock()
			w.log.Debug().Err(err).Msg("prepare failed")
			return
		}
		w.mutex.Unlock()
		return
	}
	w.affected += affected
	wt := w.wtr
	w.wtr = nil
	if w.done {
		// closing - a carried error is suppressed, the close resolves cleanly
		if wt != nil {
			wt.resolveEnd()
		}
		w.mutex.Unlock()
		return
	}
	if err != nil {
		if wt != nil {
			wt.resolveErr(err)
		} else {
			w.cachedErr = err
		}
		w.mutex.Unlock()
		return
	}
	if wt != nil {
		wt.resolveEnd()
	}
	w.mutex.Unlock()
}

// onError handles a session-scoped error - the only notification path for certain
// failure classes, independent of the completion channel
func (w *writer) onError(err error) {
	w.mutex.Lock()
	if w.terminal || w.done {
		w.mutex.Unlock()
		return
	}
	if w.preparing && !w.prepareAcked {
		w.prepareErr = err
		w.preparing = false
		w.pending = nil
		w.hasPending = false
		if wt := w.wtr; wt != nil {
			w.wtr = nil
			wt.resolveErr(err)
		}
		w.mutex.Unlock()
		w.log.Debug().Err(err).Msg("prepare failed")
		return
	}
	if wt := w.wtr; wt != nil {
		w.wtr = nil
		// the resolved call's queued parameter set dies with it - the later
		// prepared confirmation must not execute a write that already failed
		w.pending = nil
		w.hasPending = false
		wt.resolveErr(err)
	} else {
		w.cachedErr = err
	}
	w.mutex.Unlock()
}
