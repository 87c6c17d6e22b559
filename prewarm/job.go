package prewarm

import (
	"sync"
	"time"

	"github.com/rs/xid"
)

// Status is the lifecycle state of a prewarm job
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// EventType identifies a progress stream event
type EventType string

const (
	// EventMeta announces the total asset count before the walk starts
	EventMeta EventType = "meta"
	// EventProgress is emitted after each asset attempt
	EventProgress EventType = "progress"
	// EventComplete is the terminal event of a finished walk
	EventComplete EventType = "complete"
	// EventError is the terminal event of a job that could not enumerate assets
	EventError EventType = "error"
)

// Event is one entry of a job's progress stream
type Event struct {
	Type    EventType
	Done    int
	Total   int
	Message string
}

// IsTerminal checks if the event ends the stream
func (event Event) IsTerminal() bool {
	return event.Type == EventComplete || event.Type == EventError
}

// each observer channel buffers this many events; a slower observer
// loses oldest events, never the terminal one
const observerBufferSize = 64

// Job is one prewarm walk over an album. It is shared background work:
// observers come and go, the walk runs to its terminal state regardless.
type Job struct {
	id        string
	albumID   string
	size      string
	startedAt time.Time

	mutex      sync.Mutex
	status     Status
	total      int
	done       int
	failed     int
	errMessage string
	terminal   *Event
	observers  map[int]chan Event
	observerID int
}

func newJob(albumID string, size string) *Job {
	return &Job{
		id:        xid.New().String(),
		albumID:   albumID,
		size:      size,
		startedAt: time.Now(),
		status:    StatusRunning,
		observers: map[int]chan Event{},
	}
}

// GetID returns the job id
func (job *Job) GetID() string {
	return job.id
}

// GetAlbumID returns the album the job is warming
func (job *Job) GetAlbumID() string {
	return job.albumID
}

// GetSize returns the thumbnail size variant the job is warming
func (job *Job) GetSize() string {
	return job.size
}

// GetStartedAt returns the job start time
func (job *Job) GetStartedAt() time.Time {
	return job.startedAt
}

// GetStatus returns the current job status
func (job *Job) GetStatus() Status {
	job.mutex.Lock()
	defer job.mutex.Unlock()

	return job.status
}

// GetProgress returns current done and total counts
func (job *Job) GetProgress() (int, int) {
	job.mutex.Lock()
	defer job.mutex.Unlock()

	return job.done, job.total
}

// GetFailed returns how many asset attempts failed so far
func (job *Job) GetFailed() int {
	job.mutex.Lock()
	defer job.mutex.Unlock()

	return job.failed
}

// GetError returns the terminal error message, empty unless status is error
func (job *Job) GetError() string {
	job.mutex.Lock()
	defer job.mutex.Unlock()

	return job.errMessage
}

// Subscribe attaches an observer to the job's progress stream. The
// returned cancel func detaches and closes the channel; it does not
// stop the job. A subscriber joining mid-walk first receives a snapshot
// of the current progress; joining after termination receives the
// terminal event immediately.
func (job *Job) Subscribe() (<-chan Event, func()) {
	job.mutex.Lock()
	defer job.mutex.Unlock()

	events := make(chan Event, observerBufferSize)

	if job.terminal != nil {
		events <- *job.terminal
		close(events)
		return events, func() {}
	}

	// snapshot for late joiners
	if job.total > 0 {
		events <- Event{Type: EventMeta, Total: job.total}
	}
	if job.done > 0 {
		events <- Event{Type: EventProgress, Done: job.done, Total: job.total}
	}

	job.observerID++
	observerID := job.observerID
	job.observers[observerID] = events

	canceled := false
	cancel := func() {
		job.mutex.Lock()
		defer job.mutex.Unlock()

		if canceled {
			return
		}
		canceled = true

		if _, ok := job.observers[observerID]; ok {
			delete(job.observers, observerID)
			close(events)
		}
	}

	return events, cancel
}

func (job *Job) setTotal(total int) {
	job.mutex.Lock()
	job.total = total
	job.mutex.Unlock()

	job.emit(Event{Type: EventMeta, Total: total})
}

func (job *Job) incrementDone(assetFailed bool) {
	job.mutex.Lock()
	job.done++
	if assetFailed {
		job.failed++
	}
	event := Event{Type: EventProgress, Done: job.done, Total: job.total}
	job.mutex.Unlock()

	job.emit(event)
}

// finish moves the job to its terminal state and delivers the terminal
// event to every observer, closing their channels
func (job *Job) finish(err error) {
	job.mutex.Lock()
	defer job.mutex.Unlock()

	var event Event
	if err != nil {
		job.status = StatusError
		job.errMessage = err.Error()
		event = Event{Type: EventError, Message: err.Error()}
	} else {
		job.status = StatusComplete
		event = Event{Type: EventComplete, Done: job.done, Total: job.total}
	}
	job.terminal = &event

	for observerID, events := range job.observers {
		job.send(events, event)
		close(events)
		delete(job.observers, observerID)
	}
}

// emit delivers an event to every observer without ever blocking the walk
func (job *Job) emit(event Event) {
	job.mutex.Lock()
	defer job.mutex.Unlock()

	for _, events := range job.observers {
		job.send(events, event)
	}
}

// send queues an event on one observer channel, dropping the oldest
// queued event when the observer is not keeping up. The job goroutine
// is the only sender, so after dropping one there is room again.
func (job *Job) send(events chan Event, event Event) {
	select {
	case events <- event:
	default:
		select {
		case <-events:
		default:
		}
		select {
		case events <- event:
		default:
		}
	}
}
