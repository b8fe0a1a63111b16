package utils

import (
	"level-observer/src/models"
)

// -----------------------------------------------------------------------------
// RingBuffer is a fixed-size circular buffer of candles, oldest first.
// Rows are stored flat, one float per feature.
// -----------------------------------------------------------------------------

type RingBuffer struct {
	data     [][models.RB_NUM_FEATURES]float64
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewRingBuffer creates a new buffer with fixed capacity
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = MaxCandlesPerStream
	}

	return &RingBuffer{
		data:     make([][models.RB_NUM_FEATURES]float64, capacity),
		capacity: capacity,
	}
}

// -----------------------------------------------------------------------------

func toRow(c models.MCandle) [models.RB_NUM_FEATURES]float64 {
	var row [models.RB_NUM_FEATURES]float64
	row[models.RB_IDX_TIMESTAMP] = float64(c.Timestamp)
	row[models.RB_IDX_OPEN] = c.Open
	row[models.RB_IDX_HIGH] = c.High
	row[models.RB_IDX_LOW] = c.Low
	row[models.RB_IDX_CLOSE] = c.Close
	row[models.RB_IDX_VOLUME] = c.Volume
	return row
}

func fromRow(row [models.RB_NUM_FEATURES]float64) models.MCandle {
	return models.MCandle{
		Timestamp: int64(row[models.RB_IDX_TIMESTAMP]),
		Open:      row[models.RB_IDX_OPEN],
		High:      row[models.RB_IDX_HIGH],
		Low:       row[models.RB_IDX_LOW],
		Close:     row[models.RB_IDX_CLOSE],
		Volume:    row[models.RB_IDX_VOLUME],
	}
}

// -----------------------------------------------------------------------------

// Append adds a candle after the newest one.
func (rb *RingBuffer) Append(c models.MCandle) {
	rb.data[rb.index] = toRow(c)
	rb.index = (rb.index + 1) % rb.capacity

	if rb.size < rb.capacity {
		rb.size++
	}
}

// -----------------------------------------------------------------------------

// GetLatest returns the n newest candles, oldest first.
func (rb *RingBuffer) GetLatest(n int) []models.MCandle {
	if rb.size == 0 || n <= 0 {
		return []models.MCandle{}
	}

	count := n
	if n > rb.size {
		count = rb.size
	}

	result := make([]models.MCandle, count)
	startIdx := (rb.index - count + rb.capacity) % rb.capacity
	for i := 0; i < count; i++ {
		result[i] = fromRow(rb.data[(startIdx+i)%rb.capacity])
	}
	return result
}

// -----------------------------------------------------------------------------

// GetAll returns all candles in insertion order (oldest to newest)
func (rb *RingBuffer) GetAll() []models.MCandle {
	return rb.GetLatest(rb.size)
}

// -----------------------------------------------------------------------------

// Size returns current number of elements
func (rb *RingBuffer) Size() int {
	return rb.size
}

// -----------------------------------------------------------------------------

// Capacity returns buffer capacity
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

// -----------------------------------------------------------------------------

// Resize changes the capacity of the buffer.
// If newCapacity < size, oldest candles are dropped.
func (rb *RingBuffer) Resize(newCapacity int) {
	if newCapacity <= 0 || newCapacity == rb.capacity {
		return
	}

	count := rb.size
	if count > newCapacity {
		count = newCapacity
	}

	newData := make([][models.RB_NUM_FEATURES]float64, newCapacity)
	startIdx := (rb.index - count + rb.capacity) % rb.capacity
	for i := 0; i < count; i++ {
		newData[i] = rb.data[(startIdx+i)%rb.capacity]
	}

	rb.data = newData
	rb.capacity = newCapacity
	rb.size = count
	rb.index = count % newCapacity
}

// -----------------------------------------------------------------------------

// IsFull returns whether buffer is full
func (rb *RingBuffer) IsFull() bool {
	return rb.size == rb.capacity
}

// -----------------------------------------------------------------------------

// Clear resets the buffer
func (rb *RingBuffer) Clear() {
	rb.index = 0
	rb.size = 0
}
