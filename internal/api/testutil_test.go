package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"reelvault/internal/access"
	"reelvault/internal/auth"
	"reelvault/internal/credentials"
	"reelvault/internal/models"
	"reelvault/internal/objectstore"
	"reelvault/internal/secrets"
	"reelvault/internal/storage"
	"reelvault/internal/transcode"
)

type presignCall struct {
	Key           string
	ContentType   string
	ContentLength int64
	Expiry        time.Duration
}

type stubObjectStore struct {
	mu         sync.Mutex
	presignURL string
	presignErr error
	presigns   []presignCall
	exists     bool
	objects    map[string]string
	getCalls   []string
}

func (s *stubObjectStore) PresignPut(_ context.Context, key, contentType string, contentLength int64, expiry time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presigns = append(s.presigns, presignCall{Key: key, ContentType: contentType, ContentLength: contentLength, Expiry: expiry})
	if s.presignErr != nil {
		return "", s.presignErr
	}
	if s.presignURL == "" {
		return "https://bucket.example.com/" + key + "?signed", nil
	}
	return s.presignURL, nil
}

func (s *stubObjectStore) Exists(context.Context, string) (bool, error) {
	return s.exists, nil
}

func (s *stubObjectStore) Get(_ context.Context, key string) (objectstore.Object, error) {
	s.mu.Lock()
	s.getCalls = append(s.getCalls, key)
	body, ok := s.objects[key]
	s.mu.Unlock()
	if !ok {
		return objectstore.Object{}, objectstore.ErrNotFound
	}
	return objectstore.Object{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
	}, nil
}

type stubObjectStoreFactory struct {
	client *stubObjectStore
	calls  int
}

func (f *stubObjectStoreFactory) New(context.Context, objectstore.Config) (objectstore.Client, error) {
	f.calls++
	return f.client, nil
}

type stubTranscoder struct {
	mu         sync.Mutex
	submission transcode.Submission
	submitErr  error
	submits    []transcode.SubmitInput
	jobs       map[string]transcode.JobStatus
	jobErrs    map[string]error
}

func (s *stubTranscoder) SubmitJob(_ context.Context, input transcode.SubmitInput) (transcode.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submits = append(s.submits, input)
	if s.submitErr != nil {
		return transcode.Submission{}, s.submitErr
	}
	if s.submission.JobID == "" {
		return transcode.Submission{
			JobID:       "job-1",
			ManifestKey: input.OutputPrefix + "index.m3u8",
		}, nil
	}
	return s.submission, nil
}

func (s *stubTranscoder) GetJob(_ context.Context, jobID string) (transcode.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.jobErrs[jobID]; ok {
		return transcode.JobStatus{}, err
	}
	if status, ok := s.jobs[jobID]; ok {
		return status, nil
	}
	return transcode.JobStatus{}, transcode.ErrJobNotFound
}

type stubTranscoderFactory struct {
	client *stubTranscoder
	calls  int
}

func (f *stubTranscoderFactory) New(context.Context, transcode.Config) (transcode.Client, error) {
	f.calls++
	return f.client, nil
}

type fixture struct {
	handler    *Handler
	store      *storage.Storage
	codec      *secrets.Codec
	objects    *stubObjectStore
	transcoder *stubTranscoder
	objectFac  *stubObjectStoreFactory
	transFac   *stubTranscoderFactory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewStorage("")
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	codec, err := secrets.NewCodec(make([]byte, 32))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	objects := &stubObjectStore{exists: true, objects: map[string]string{}}
	transcoder := &stubTranscoder{jobs: map[string]transcode.JobStatus{}, jobErrs: map[string]error{}}
	objectFac := &stubObjectStoreFactory{client: objects}
	transFac := &stubTranscoderFactory{client: transcoder}

	handler := NewHandler(store, auth.NewSessionManager(time.Hour))
	handler.Credentials = credentials.NewResolver(store, codec)
	handler.Gate = access.NewGate(store)
	handler.ObjectStores = objectFac
	handler.Transcoders = transFac
	handler.Secrets = codec

	return &fixture{
		handler:    handler,
		store:      store,
		codec:      codec,
		objects:    objects,
		transcoder: transcoder,
		objectFac:  objectFac,
		transFac:   transFac,
	}
}

func (f *fixture) createUser(t *testing.T, email string) models.User {
	t.Helper()
	user, err := f.store.CreateUser(storage.CreateUserParams{
		DisplayName: strings.SplitN(email, "@", 2)[0],
		Email:       email,
		Password:    "correct horse battery",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func (f *fixture) configureCredential(t *testing.T, userID, teamID, roleARN string) models.StorageCredential {
	t.Helper()
	encryptedKey, err := f.codec.Encrypt("AKIAEXAMPLE")
	if err != nil {
		t.Fatalf("encrypt key: %v", err)
	}
	encryptedSecret, err := f.codec.Encrypt("secret-material")
	if err != nil {
		t.Fatalf("encrypt secret: %v", err)
	}
	credential, err := f.store.UpsertStorageCredential(storage.UpsertStorageCredentialParams{
		UserID:                   userID,
		TeamID:                   teamID,
		EncryptedAccessKeyID:     encryptedKey,
		EncryptedSecretAccessKey: encryptedSecret,
		BucketName:               "tenant-bucket",
		Region:                   "eu-west-1",
		TranscodeRoleARN:         roleARN,
	})
	if err != nil {
		t.Fatalf("upsert credential: %v", err)
	}
	return credential
}

func (f *fixture) createVideo(t *testing.T, ownerID, teamID string) models.Video {
	t.Helper()
	video, err := f.store.CreateVideo(storage.CreateVideoParams{
		OwnerID:     ownerID,
		TeamID:      teamID,
		Title:       "launch recap",
		OriginalKey: "videos/" + ownerID + "/1700000000-original.mp4",
		Visibility:  models.VisibilityPrivate,
	})
	if err != nil {
		t.Fatalf("create video: %v", err)
	}
	return video
}

func jsonRequest(method, target string, body any) *http.Request {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	return httptest.NewRequest(method, target, reader)
}

func authedRequest(method, target string, body any, user models.User) *http.Request {
	req := jsonRequest(method, target, body)
	return req.WithContext(ContextWithUser(req.Context(), user))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
