package audio

import "sync"

// Ring is the capture-side circular sample buffer. The device callback keeps
// writing into it at its own cadence and the oldest samples are overwritten
// once the buffer is full; the write position simply wraps. Readers track
// their own cursor and take the wrap-around into account.
type Ring struct {
	mu  sync.Mutex
	buf []float32
	pos int // next write index, always < len(buf)
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{buf: make([]float32, capacity)}
}

func (r *Ring) Capacity() int {
	return len(r.buf)
}

// Position returns the current write index.
func (r *Ring) Position() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

// Write appends float samples at the write position, wrapping as needed.
func (r *Ring) Write(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range samples {
		r.buf[r.pos] = s
		r.pos++
		if r.pos == len(r.buf) {
			r.pos = 0
		}
	}
}

// WritePCM converts little-endian 16-bit PCM to floats in [-1, 1) and writes
// them. This is the shape capture backends deliver.
func (r *Ring) WritePCM(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i+1 < len(data); i += 2 {
		s := int16(data[i]) | int16(data[i+1])<<8
		r.buf[r.pos] = float32(s) / 32768.0
		r.pos++
		if r.pos == len(r.buf) {
			r.pos = 0
		}
	}
}

// copyFrom copies len(dst) samples starting at index from, handling the
// split read when the range spans the end of the buffer.
func (r *Ring) copyFrom(dst []float32, from int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tail := len(r.buf) - from
	if tail >= len(dst) {
		copy(dst, r.buf[from:from+len(dst)])
		return
	}
	copy(dst, r.buf[from:])
	copy(dst[tail:], r.buf[:len(dst)-tail])
}

// Reader drains fixed-size windows from a Ring. It is single-consumer: one
// Reader per session, advanced only by the tick loop.
type Reader struct {
	ring *Ring
	last int // read cursor
}

func NewReader(r *Ring) *Reader {
	return &Reader{ring: r, last: r.Position()}
}

// Available reports the number of unread samples. A write position behind
// the read cursor means the buffer wrapped, so a full capacity is added.
// If the writer laps the reader by more than one capacity, the overwritten
// samples are silently lost; the ring must be sized for the tick cadence.
func (rd *Reader) Available() int {
	pos := rd.ring.Position()
	if pos < rd.last {
		return pos + rd.ring.Capacity() - rd.last
	}
	return pos - rd.last
}

// ReadWindow fills dst with the next len(dst) unread samples and advances
// the cursor. It returns false without consuming anything when fewer than
// len(dst) samples are available.
func (rd *Reader) ReadWindow(dst []float32) bool {
	if len(dst) == 0 || rd.Available() < len(dst) {
		return false
	}
	rd.ring.copyFrom(dst, rd.last)
	rd.last = (rd.last + len(dst)) % rd.ring.Capacity()
	return true
}

// Reset moves the cursor to the current write position, discarding unread
// samples.
func (rd *Reader) Reset() {
	rd.last = rd.ring.Position()
}
