package rowstream

// UsageError is the error kind reported for synchronous misuse - missing required
// configuration, invalid options or calls on a closed writer
type UsageError string

func (e UsageError) Error() string {
	return string(e)
}

// ErrConcurrentCall is reported when a second call is made on a Reader or Writer
// while another call on the same instance is still outstanding
const ErrConcurrentCall = UsageError("call already outstanding on this instance")

// ProtocolError is the error kind surfaced for errors reported by the session
//
// it only ever surfaces as the result of a Next, Stop, Write or Close call - never
// out-of-band - and for a Reader all previously buffered rows are drained before a
// pending ProtocolError is reported
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Err.Error()
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
