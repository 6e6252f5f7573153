package rowstream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRowBuffer_Fifo(t *testing.T) {
	fs := &fakeSession{}
	b := newRowBuffer(Watermarks{Low: 0, High: 10}, fs)
	b.push(Record{"n": 1})
	b.push(Record{"n": 2})
	b.push(Record{"n": 3})
	require.Equal(t, 3, b.len())
	require.Equal(t, Record{"n": 1}, b.shift())
	require.Equal(t, Record{"n": 2}, b.shift())
	require.Equal(t, Record{"n": 3}, b.shift())
	require.Equal(t, 0, b.len())
}

func TestRowBuffer_PauseOnHighTransition(t *testing.T) {
	fs := &fakeSession{}
	b := newRowBuffer(Watermarks{Low: 0, High: 2}, fs)
	b.push(Record{"n": 1})
	require.Equal(t, 0, fs.pauseCount())
	b.push(Record{"n": 2})
	require.Equal(t, 1, fs.pauseCount())
	// level-triggered - pushing past high does not pause again
	b.push(Record{"n": 3})
	require.Equal(t, 1, fs.pauseCount())
}

func TestRowBuffer_ResumeOnLowTransition(t *testing.T) {
	fs := &fakeSession{}
	b := newRowBuffer(Watermarks{Low: 1, High: 3}, fs)
	b.push(Record{"n": 1})
	b.push(Record{"n": 2})
	b.push(Record{"n": 3})
	require.Equal(t, 1, fs.pauseCount())
	_ = b.shift()
	require.Equal(t, 0, fs.resumeCount())
	_ = b.shift()
	require.Equal(t, 1, fs.resumeCount())
	// only on the transition to low, not below it
	_ = b.shift()
	require.Equal(t, 1, fs.resumeCount())
}
