package models

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// UploadStatus is the state of one UploadTask.
type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadUploading UploadStatus = "uploading"
	UploadSuccess   UploadStatus = "success"
	UploadError     UploadStatus = "error"
)

// CanTransition reports whether the state machine allows s -> next.
// pending -> uploading -> success|error, and error -> pending for a retry.
func (s UploadStatus) CanTransition(next UploadStatus) bool {
	switch s {
	case UploadPending:
		return next == UploadUploading
	case UploadUploading:
		return next == UploadSuccess || next == UploadError
	case UploadError:
		return next == UploadPending
	default:
		return false
	}
}

// Terminal reports whether s ends a transmission attempt.
func (s UploadStatus) Terminal() bool {
	return s == UploadSuccess || s == UploadError
}

// Payload is the raw file handed to the upload queue. Open is called once
// per transmission attempt, so a retried task reads the content again.
type Payload struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// PayloadFromPath builds a Payload backed by a file on disk.
func PayloadFromPath(path string) (Payload, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Payload{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.IsDir() {
		return Payload{}, fmt.Errorf("%s is a directory", path)
	}

	return Payload{
		Name: filepath.Base(path),
		Size: st.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// UploadTask is a client-only queue entry. ID is assigned by the queue and
// stays stable for the task's lifetime; it is never reused.
type UploadTask struct {
	ID       int
	Payload  Payload
	Progress int
	Status   UploadStatus
	Err      error
	Record   *FileRecord
}
