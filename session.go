package rowstream

import (
	"sync"

	"github.com/google/uuid"
)

// Record is a single row transferred between the session and the caller
type Record map[string]any

// Parameter is a single positionally-named parameter binding, as produced by a ParamBinder
type Parameter struct {
	Name  string
	Value any
}

// Session is the protocol session driven by a Reader or Writer
//
// implementations deliver row/completion/prepared events through the Request handle
// they are given, and may deliver session-scoped errors through the handler registered
// with SetErrorHandler
//
// for one Request, a session delivers zero or more row events followed by exactly one
// completion event - never a completion before all rows, never two completions
type Session interface {
	// Execute executes the request - for a Writer, with the supplied parameter bindings
	Execute(req *Request, params []Parameter)
	// Cancel cancels the in-flight request
	Cancel()
	// Prepare prepares the request's statement
	Prepare(req *Request)
	// Unprepare releases the request's prepared statement
	Unprepare(req *Request)
	// Pause asks the underlying transport to stop producing rows (advisory)
	Pause()
	// Resume asks the underlying transport to continue producing rows (advisory)
	Resume()
	// SetErrorHandler registers a handler for session-scoped errors (nil detaches)
	SetErrorHandler(h func(err error))
}

// Request is the handle binding one statement execution to a session
//
// a Request is created when a Reader or Writer is opened and is never reused across
// opens - its event handlers are detached exactly once, on the terminal transition
type Request struct {
	id          uuid.UUID
	mutex       sync.Mutex
	onRow       func(rec Record)
	onCompleted func(err error, affected int64)
	onPrepared  func()
}

func newRequest(onRow func(Record), onCompleted func(error, int64), onPrepared func()) *Request {
	return &Request{
		id:          uuid.New(),
		onRow:       onRow,
		onCompleted: onCompleted,
		onPrepared:  onPrepared,
	}
}

// ID returns the identity of the request (used in traces)
func (r *Request) ID() uuid.UUID {
	return r.id
}

// Row delivers a row event from the session
func (r *Request) Row(rec Record) {
	r.mutex.Lock()
	h := r.onRow
	r.mutex.Unlock()
	if h != nil {
		h(rec)
	}
}

// Completed delivers the completion event from the session
//
// err is the carried error, if any; affected is the affected row count
func (r *Request) Completed(err error, affected int64) {
	r.mutex.Lock()
	h := r.onCompleted
	r.mutex.Unlock()
	if h != nil {
		h(err, affected)
	}
}

// Prepared delivers the prepared confirmation event from the session
func (r *Request) Prepared() {
	r.mutex.Lock()
	h := r.onPrepared
	r.mutex.Unlock()
	if h != nil {
		h()
	}
}

// release detaches the event handlers - events arriving afterwards are dropped
func (r *Request) release() {
	r.mutex.Lock()
	r.onRow = nil
	r.onCompleted = nil
	r.onPrepared = nil
	r.mutex.Unlock()
}
