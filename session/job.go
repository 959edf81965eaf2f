package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/selection"
	"github.com/google/uuid"
	"github.com/looplab/fsm"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

const (
	eventStart   = "start"
	eventSucceed = "succeed"
	eventFail    = "fail"
	eventCancel  = "cancel"
)

var ErrJobFinished = errors.New("export job already finished")

func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

// JobSnapshot is the read-only view of a Job handed to the HTTP layer.
type JobSnapshot struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	Error       string     `json:"error,omitempty"`
	Size        int64      `json:"size,omitempty"`
	ObjectKey   string     `json:"objectKey,omitempty"`
	DownloadURL string     `json:"downloadUrl,omitempty"`
	Entries     int        `json:"entries"`
	CreatedAt   time.Time  `json:"createdAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}

// Job is one zip export. Its status only moves forward:
// pending -> running -> succeeded|failed|cancelled.
type Job struct {
	ID        string
	CreatedAt time.Time

	mu          sync.Mutex
	machine     *fsm.FSM
	progress    int
	err         string
	size        int64
	entries     int
	objectKey   string
	downloadURL string
	data        []byte
	finishedAt  *time.Time
	cancel      context.CancelFunc
	done        chan struct{}
	selections  *selection.Store
}

func newJob(cancel context.CancelFunc, selections *selection.Store) *Job {
	return &Job{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now(),
		cancel:     cancel,
		done:       make(chan struct{}),
		selections: selections,
		machine: fsm.NewFSM(
			string(JobPending),
			fsm.Events{
				{Name: eventStart, Src: []string{string(JobPending)}, Dst: string(JobRunning)},
				{Name: eventSucceed, Src: []string{string(JobRunning)}, Dst: string(JobSucceeded)},
				{Name: eventFail, Src: []string{string(JobPending), string(JobRunning)}, Dst: string(JobFailed)},
				{Name: eventCancel, Src: []string{string(JobPending), string(JobRunning)}, Dst: string(JobCancelled)},
			},
			fsm.Callbacks{},
		),
	}
}

// transition must be called with j.mu held.
func (j *Job) transition(event string) error {
	if err := j.machine.Event(context.Background(), event); err != nil {
		var invalid fsm.InvalidEventError
		if errors.As(err, &invalid) {
			return ErrJobFinished
		}
		return err
	}
	if JobStatus(j.machine.Current()).Terminal() {
		now := time.Now()
		j.finishedAt = &now
		j.cancel()
		close(j.done)
	}
	return nil
}

func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobStatus(j.machine.Current())
}

func (j *Job) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transition(eventStart)
}

// SetProgress records a percentage; lower values than the current one are
// ignored.
func (j *Job) SetProgress(p int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if p > 100 {
		p = 100
	}
	if p > j.progress {
		j.progress = p
	}
}

// Succeed stores the archive. data may be nil when the archive went to
// object storage; objectKey and downloadURL then point at it.
func (j *Job) Succeed(data []byte, size int64, entries int, objectKey, downloadURL string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transition(eventSucceed); err != nil {
		return err
	}
	j.progress = 100
	j.data = data
	j.size = size
	j.entries = entries
	j.objectKey = objectKey
	j.downloadURL = downloadURL
	return nil
}

func (j *Job) Fail(cause error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transition(eventFail); err != nil {
		return err
	}
	if cause != nil {
		j.err = cause.Error()
	}
	return nil
}

// Cancel stops a pending or running job. The worker observes the cancelled
// context and gives up; its later Fail or Succeed is refused.
func (j *Job) Cancel() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transition(eventCancel)
}

// ResetSelections clears the selections this job was exported from. A list
// loaded after the job started keeps its own selections.
func (j *Job) ResetSelections() {
	if j.selections != nil {
		j.selections.Reset()
	}
}

// Done is closed once the job reaches a terminal status.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Data returns the archive bytes of a succeeded in-memory job.
func (j *Job) Data() ([]byte, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if JobStatus(j.machine.Current()) != JobSucceeded || j.data == nil {
		return nil, false
	}
	return j.data, true
}

func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobSnapshot{
		ID:          j.ID,
		Status:      JobStatus(j.machine.Current()),
		Progress:    j.progress,
		Error:       j.err,
		Size:        j.size,
		ObjectKey:   j.objectKey,
		DownloadURL: j.downloadURL,
		Entries:     j.entries,
		CreatedAt:   j.CreatedAt,
		FinishedAt:  j.finishedAt,
	}
}
