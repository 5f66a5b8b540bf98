package broker

import (
	"sync"

	"github.com/oscied/orchestra/pkg/types"
)

// Submission records one job accepted by the mock queue.
type Submission struct {
	Queue   string
	Name    string
	TaskID  string
	Payload any
}

// MockQueue is an in-process JobQueue for tests and mock mode.
type MockQueue struct {
	mu          sync.Mutex
	Submissions []Submission
	Revoked     []string

	// FailNext makes the next Submit fail, simulating a broker outage.
	FailNext bool
}

// NewMockQueue creates an empty mock queue
func NewMockQueue() *MockQueue {
	return &MockQueue{}
}

func (q *MockQueue) Submit(queue, name string, payload any) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.FailNext {
		q.FailNext = false
		return "", types.E(types.ErrTransient, "broker unavailable")
	}
	sub := Submission{Queue: queue, Name: name, TaskID: types.NewID(), Payload: payload}
	q.Submissions = append(q.Submissions, sub)
	return sub.TaskID, nil
}

func (q *MockQueue) Revoke(taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Revoked = append(q.Revoked, taskID)
	return nil
}

func (q *MockQueue) Close() error {
	return nil
}

// Last returns the most recent submission, nil when none happened.
func (q *MockQueue) Last() *Submission {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.Submissions) == 0 {
		return nil
	}
	s := q.Submissions[len(q.Submissions)-1]
	return &s
}
