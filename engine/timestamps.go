package engine

const (
	// DefaultTimestampInterval is the number of samples between two emitted
	// timestamps of a channel.
	DefaultTimestampInterval = 1024
	// DefaultMinTimestampWrite is the pending batch size a channel must
	// exceed before EndChannelBlock writes it out.
	DefaultMinTimestampWrite = 32

	timestampPrealloc = 128
)

// TimestampBuffer reconstructs a regular timestamp series for one channel out
// of arbitrarily sized sample deliveries. One absolute timestamp is emitted
// for every interval samples; the position inside the current interval is
// carried between deliveries so that chunking does not move the marks.
type TimestampBuffer struct {
	interval int
	offset   int
	pending  []int64
	last     int64
	emitted  bool
}

func NewTimestampBuffer(interval int) *TimestampBuffer {
	if interval <= 0 {
		interval = DefaultTimestampInterval
	}
	return &TimestampBuffer{
		interval: interval,
		pending:  make([]int64, 0, timestampPrealloc),
	}
}

// Append accounts for n new samples whose first sample carries timestamp ts
// and returns how many timestamps were emitted.
func (b *TimestampBuffer) Append(ts int64, n int) int {
	if n <= 0 {
		return 0
	}
	first := 0
	if b.offset > 0 {
		first = b.interval - b.offset
	}
	emitted := 0
	for i := first; i < n; i += b.interval {
		mark := ts + int64(i)
		b.pending = append(b.pending, mark)
		b.last = mark
		b.emitted = true
		emitted++
	}
	b.offset = (n + b.offset) % b.interval
	return emitted
}

// Pending returns the timestamps not flushed yet. The slice is only valid
// until the next call to Append or Clear.
func (b *TimestampBuffer) Pending() []int64 {
	return b.pending
}

func (b *TimestampBuffer) Len() int {
	return len(b.pending)
}

// Offset is the number of samples delivered since the last cadence boundary.
func (b *TimestampBuffer) Offset() int {
	return b.offset
}

func (b *TimestampBuffer) Interval() int {
	return b.interval
}

// Last returns the most recently emitted timestamp, flushed or not.
func (b *TimestampBuffer) Last() (int64, bool) {
	return b.last, b.emitted
}

// Clear drops the pending batch after it has been written. The carried
// offset is kept.
func (b *TimestampBuffer) Clear() {
	b.pending = b.pending[:0]
}
