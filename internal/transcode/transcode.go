// Package transcode submits HLS transcoding jobs against tenant accounts and
// reports their progress. The client owns the output naming convention: the
// manifest key it returns is the only place the rest of the system learns
// where the master playlist will land.
package transcode

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when the transcoding service no longer knows the
// job id.
var ErrJobNotFound = errors.New("transcode job not found")

// JobState is the provider-side lifecycle of a submitted job.
type JobState string

const (
	StateSubmitted   JobState = "SUBMITTED"
	StateProgressing JobState = "PROGRESSING"
	StateComplete    JobState = "COMPLETE"
	StateError       JobState = "ERROR"
	StateCanceled    JobState = "CANCELED"
)

// Finished reports whether the provider will never change this state again.
func (s JobState) Finished() bool {
	return s == StateComplete || s == StateError || s == StateCanceled
}

// SubmitInput describes one transcoding job: read InputKey from Bucket,
// write HLS renditions under OutputPrefix.
type SubmitInput struct {
	Bucket       string
	InputKey     string
	OutputPrefix string
	// RoleARN is assumed by the transcoding service to reach the tenant's
	// bucket.
	RoleARN string
}

// Submission identifies a submitted job and where its master playlist will be
// written once the job completes.
type Submission struct {
	JobID       string
	ManifestKey string
}

// JobStatus is a point-in-time view of a job.
type JobStatus struct {
	JobID        string
	State        JobState
	ErrorMessage string
}

// Client submits and inspects jobs for one tenant account.
type Client interface {
	SubmitJob(ctx context.Context, input SubmitInput) (Submission, error)
	GetJob(ctx context.Context, jobID string) (JobStatus, error)
}

// Factory builds a Client for one set of tenant credentials.
type Factory interface {
	New(ctx context.Context, cfg Config) (Client, error)
}

// Config carries the tenant account material for the transcoding service.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the service endpoint, mainly for tests.
	Endpoint string
}
