package rowstream

// Watermarks is an option that can be passed to NewReader
//
// and configures the bounded row buffer thresholds: the underlying transport is paused
// when the buffer length reaches High and resumed when it falls back to Low
type Watermarks struct {
	Low  int
	High int
}

const (
	defaultLowWatermark  = 4
	defaultHighWatermark = 16
)

// rowBuffer is the bounded FIFO between session row events and Reader.Next
//
// pause/resume are level-triggered on length transitions, not edge-triggered on
// every push/shift
type rowBuffer struct {
	rows []Record
	low  int
	high int
	sess Session
}

func newRowBuffer(marks Watermarks, sess Session) *rowBuffer {
	return &rowBuffer{
		rows: make([]Record, 0, marks.High),
		low:  marks.Low,
		high: marks.High,
		sess: sess,
	}
}

func (b *rowBuffer) push(rec Record) {
	b.rows = append(b.rows, rec)
	if len(b.rows) == b.high {
		b.sess.Pause()
	}
}

func (b *rowBuffer) shift() Record {
	rec := b.rows[0]
	b.rows[0] = nil
	b.rows = b.rows[1:]
	if len(b.rows) == b.low {
		b.sess.Resume()
	}
	return rec
}

func (b *rowBuffer) len() int {
	return len(b.rows)
}
