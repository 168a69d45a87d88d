package jobqueue

import (
	"context"
	"sync"

	"github.com/ManuelReschke/InvoiceFox/internal/pkg/recurrence"
)

type fakeRunner struct {
	mu       sync.Mutex
	requests []recurrence.Request
	err      error
}

func (f *fakeRunner) Run(_ context.Context, req recurrence.Request) (*recurrence.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &recurrence.Response{Success: true, RunID: "run-fake", Message: "Processed 0 contracts"}, nil
}

func (f *fakeRunner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func recurrenceRequest() recurrence.Request {
	return recurrence.Request{Source: "test"}
}
