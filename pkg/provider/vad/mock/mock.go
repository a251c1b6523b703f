// Package mock provides a test double for the vad.Classifier interface.
//
// Use Classifier to script per-frame decisions and to inspect the frames that
// were submitted for classification.
//
// Example:
//
//	c := &mock.Classifier{Decisions: []bool{false, true, true, false}}
//	g, _ := gate.New(cfg, c)
package mock

import (
	"sync"

	"github.com/MrWong99/radioclean/pkg/provider/vad"
)

// IsSpeechCall records a single invocation of Classifier.IsSpeech.
type IsSpeechCall struct {
	// Frame is a copy of the bytes passed to IsSpeech.
	Frame []byte

	// SampleRate is the rate passed to IsSpeech.
	SampleRate int
}

// Classifier is a mock implementation of vad.Classifier.
type Classifier struct {
	mu sync.Mutex

	// Decisions holds the result for the n-th call. Calls beyond the end of
	// the slice return Default.
	Decisions []bool

	// Default is returned once Decisions is exhausted.
	Default bool

	// Err, if non-nil, is returned by every IsSpeech call.
	Err error

	// ErrAt, if positive, makes the call with that zero-based index fail
	// with Err instead of every call.
	ErrAt int

	// Calls records every call to IsSpeech in order.
	Calls []IsSpeechCall
}

// IsSpeech records the call and returns the scripted decision.
func (c *Classifier) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := len(c.Calls)
	cp := make([]byte, len(frame))
	copy(cp, frame)
	c.Calls = append(c.Calls, IsSpeechCall{Frame: cp, SampleRate: sampleRate})
	if c.Err != nil && (c.ErrAt <= 0 || c.ErrAt == idx) {
		return false, c.Err
	}
	if idx < len(c.Decisions) {
		return c.Decisions[idx], nil
	}
	return c.Default, nil
}

// CallCount returns the number of IsSpeech calls recorded so far. Thread-safe.
func (c *Classifier) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}

// Reset clears all recorded calls so the Decisions script replays from the
// start. Thread-safe.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = nil
}

// Ensure Classifier implements vad.Classifier at compile time.
var _ vad.Classifier = (*Classifier)(nil)
