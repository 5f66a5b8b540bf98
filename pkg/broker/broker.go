package broker

// Callback tells a worker where to report completion and how to
// authenticate against the control plane.
type Callback struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Job is the envelope published to a worker queue.
type Job struct {
	TaskID  string `json:"task_id"`
	Name    string `json:"name"`
	Payload any    `json:"payload"`
}

// Job names understood by workers.
const (
	JobTransform = "transform.run"
	JobPublish   = "publisher.run"
	JobUnpublish = "publisher.revoke"
)

// JobQueue dispatches jobs to worker queues. Submit returns the assigned
// task id; an empty id with a nil error never happens, failures return an
// error the caller maps to a transmission failure.
type JobQueue interface {
	Submit(queue, name string, payload any) (string, error)
	Revoke(taskID string) error
	Close() error
}
