package messaging

import (
	"context"
	"encoding/json"
	"sync"
)

// Message is one payload captured by Recorder.
type Message struct {
	Subject string
	Data    json.RawMessage
}

// Recorder captures published messages and submitted jobs in memory. It is
// used by tests and by single-process runs without NATS.
type Recorder struct {
	mu        sync.Mutex
	Published []Message
	Submitted []Message
	Err       error
}

var (
	_ Publisher    = (*Recorder)(nil)
	_ JobSubmitter = (*Recorder)(nil)
)

func (r *Recorder) Publish(_ context.Context, subject string, v any) error {
	return r.record(&r.Published, subject, v)
}

func (r *Recorder) Submit(_ context.Context, subject string, v any) error {
	return r.record(&r.Submitted, subject, v)
}

func (r *Recorder) record(into *[]Message, subject string, v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	*into = append(*into, Message{Subject: subject, Data: data})
	return nil
}

// Count returns how many messages were published or submitted on subject.
func (r *Recorder) Count(subject string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, m := range r.Published {
		if m.Subject == subject {
			n++
		}
	}
	for _, m := range r.Submitted {
		if m.Subject == subject {
			n++
		}
	}
	return n
}
