package rowstream

// Limiter is an interface that can be passed as an option to Reader.All or Reader.WriteJSON
//
// and is used to limit the number of rows drained
type Limiter interface {
	// LimitReached should return true if the rowCount arg exceeds the maximum
	LimitReached(rowCount int) bool
}

// RowLimit is a Limiter that stops a drain after a fixed number of rows
type RowLimit int

var _ Limiter = (RowLimit)(0)

func (l RowLimit) LimitReached(rowCount int) bool {
	return rowCount > int(l)
}

type nullLimiter struct{}

var _ Limiter = (*nullLimiter)(nil)

func (n *nullLimiter) LimitReached(rowCount int) bool {
	return false
}
