package stats

import (
	"fmt"
	"sync"
)

// PowerBuffer implements a thread-safe ring buffer of power values. Once the
// buffer holds capacity values every append evicts the oldest ones, so its
// size never exceeds capacity.
type PowerBuffer struct {
	capacity int

	mu   sync.Mutex
	data []float64
	head int // index of the oldest value
	size int
}

// NewPowerBuffer creates a buffer holding up to capacity power values.
// Returns an error if capacity is not positive.
func NewPowerBuffer(capacity int) (*PowerBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid buffer capacity: %d", capacity)
	}
	return &PowerBuffer{
		capacity: capacity,
		data:     make([]float64, capacity),
	}, nil
}

// Append adds values in order, dropping the oldest values when full.
func (pb *PowerBuffer) Append(values ...float64) {
	if len(values) > pb.capacity {
		values = values[len(values)-pb.capacity:]
	}

	pb.mu.Lock()
	defer pb.mu.Unlock()

	for _, v := range values {
		tail := (pb.head + pb.size) % pb.capacity
		pb.data[tail] = v

		if pb.size < pb.capacity {
			pb.size++
		} else {
			pb.head = (pb.head + 1) % pb.capacity
		}
	}
}

// Values returns a copy of the buffer contents, oldest first.
func (pb *PowerBuffer) Values() []float64 {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	out := make([]float64, pb.size)
	n := copy(out, pb.data[pb.head:min(pb.head+pb.size, pb.capacity)])
	copy(out[n:], pb.data[:pb.size-n])
	return out
}

// IsFull returns true if the buffer has reached its capacity.
func (pb *PowerBuffer) IsFull() bool {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	return pb.size >= pb.capacity
}

func (pb *PowerBuffer) len() int {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.size
}
