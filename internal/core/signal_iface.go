package core

import "errors"

var (
	ErrBackpressure     = errors.New("backpressure")
	ErrConnectionClosed = errors.New("connection closed")
)

// Frame is a raw encoded payload.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues a frame without blocking. It returns ErrBackpressure when
	// the queue is full and ErrConnectionClosed after Close.
	TrySend(Frame) error
	// Close flushes queued frames and then tears the transport down.
	Close()
}
