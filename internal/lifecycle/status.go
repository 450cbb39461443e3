package lifecycle

import "fmt"

// Status is the closed set of lifecycle states. Transitions outside the
// table below are rejected, so callers cannot drive a record into an
// inconsistent state.
type Status string

const (
	StatusCreated      Status = "created"
	StatusUploading    Status = "uploading"
	StatusUploaded     Status = "uploaded"
	StatusUploadFailed Status = "upload_failed"
	StatusDeleted      Status = "deleted"
)

var transitions = map[Status][]Status{
	StatusCreated:      {StatusUploading},
	StatusUploading:    {StatusUploaded, StatusUploadFailed},
	StatusUploadFailed: {StatusUploading, StatusUploaded},
	StatusUploaded:     {StatusDeleted},
	StatusDeleted:      {},
}

func (s Status) canTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) transition(to Status) (Status, error) {
	if !s.canTransition(to) {
		return s, fmt.Errorf("illegal status transition %s -> %s", s, to)
	}
	return to, nil
}
