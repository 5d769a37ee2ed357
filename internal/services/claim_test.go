package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/techtrust/backend/internal/storage"
	"github.com/techtrust/backend/internal/store"
	"github.com/techtrust/backend/types"
)

type fakeClaimRepo struct {
	mu     sync.Mutex
	nextID int64
	claims map[int64]*types.Claim
}

func newFakeClaimRepo() *fakeClaimRepo {
	return &fakeClaimRepo{claims: make(map[int64]*types.Claim)}
}

func (f *fakeClaimRepo) Get(_ context.Context, id int64) (types.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if claim, ok := f.claims[id]; ok {
		return *claim, nil
	}
	return types.Claim{}, store.ErrNotFound
}

func (f *fakeClaimRepo) List(_ context.Context) ([]types.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Claim, 0, len(f.claims))
	for _, claim := range f.claims {
		out = append(out, *claim)
	}
	return out, nil
}

func (f *fakeClaimRepo) Create(_ context.Context, claim types.Claim) (types.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	claim.ID = f.nextID
	copied := claim
	f.claims[claim.ID] = &copied
	return claim, nil
}

func (f *fakeClaimRepo) SetEvidenceKey(_ context.Context, id int64, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	claim, ok := f.claims[id]
	if !ok {
		return store.ErrNotFound
	}
	claim.EvidenceKey = key
	return nil
}

func (f *fakeClaimRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.claims[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.claims, id)
	return nil
}

// fakeObjectStorage keeps uploaded objects in a map.
type fakeObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: make(map[string][]byte)}
}

func (f *fakeObjectStorage) EnsureBucket(context.Context) error { return nil }

func (f *fakeObjectStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStorage) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStorage) Bucket() string { return "techtrust-evidence" }

func TestAttachEvidence(t *testing.T) {
	repo := newFakeClaimRepo()
	objects := newFakeObjectStorage()
	svc := NewClaimService(repo, storage.NewStorage(objects))

	created, err := svc.Create(context.Background(), types.Claim{Text: "built a search engine"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	claim, err := svc.AttachEvidence(context.Background(), created.ID, "cert.pdf", "application/pdf", []byte("pdf-bytes"))
	if err != nil {
		t.Fatalf("AttachEvidence error: %v", err)
	}
	if !claim.HasEvidence || claim.EvidenceKey == "" {
		t.Fatalf("expected evidence key on claim, got %+v", claim)
	}
	if !strings.HasPrefix(claim.EvidenceKey, "claims/") || !strings.HasSuffix(claim.EvidenceKey, "-cert.pdf") {
		t.Fatalf("unexpected evidence key %q", claim.EvidenceKey)
	}

	reader, err := svc.OpenEvidence(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("OpenEvidence error: %v", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read evidence: %v", err)
	}
	if string(data) != "pdf-bytes" {
		t.Fatalf("unexpected evidence content %q", data)
	}
}

func TestAttachEvidence_ReplacesOldObject(t *testing.T) {
	repo := newFakeClaimRepo()
	objects := newFakeObjectStorage()
	svc := NewClaimService(repo, storage.NewStorage(objects))

	created, err := svc.Create(context.Background(), types.Claim{Text: "claim"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	first, err := svc.AttachEvidence(context.Background(), created.ID, "v1.pdf", "application/pdf", []byte("v1"))
	if err != nil {
		t.Fatalf("first AttachEvidence error: %v", err)
	}
	if _, err := svc.AttachEvidence(context.Background(), created.ID, "v2.pdf", "application/pdf", []byte("v2")); err != nil {
		t.Fatalf("second AttachEvidence error: %v", err)
	}

	objects.mu.Lock()
	defer objects.mu.Unlock()
	if _, ok := objects.objects[first.EvidenceKey]; ok {
		t.Fatalf("replaced evidence object should be deleted")
	}
	if len(objects.objects) != 1 {
		t.Fatalf("expected exactly one evidence object, got %d", len(objects.objects))
	}
}

func TestAttachEvidence_NoStorageConfigured(t *testing.T) {
	svc := NewClaimService(newFakeClaimRepo(), nil)

	if _, err := svc.AttachEvidence(context.Background(), 1, "f.pdf", "application/pdf", nil); !errors.Is(err, ErrStorageNotConfigured) {
		t.Fatalf("expected ErrStorageNotConfigured, got %v", err)
	}
	if _, err := svc.OpenEvidence(context.Background(), 1); !errors.Is(err, ErrStorageNotConfigured) {
		t.Fatalf("expected ErrStorageNotConfigured, got %v", err)
	}
}

func TestOpenEvidence_NoAttachment(t *testing.T) {
	repo := newFakeClaimRepo()
	svc := NewClaimService(repo, storage.NewStorage(newFakeObjectStorage()))

	created, err := svc.Create(context.Background(), types.Claim{Text: "claim"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := svc.OpenEvidence(context.Background(), created.ID); !errors.Is(err, ErrNoEvidence) {
		t.Fatalf("expected ErrNoEvidence, got %v", err)
	}
}

func TestDeleteClaim_RemovesEvidence(t *testing.T) {
	repo := newFakeClaimRepo()
	objects := newFakeObjectStorage()
	svc := NewClaimService(repo, storage.NewStorage(objects))

	created, err := svc.Create(context.Background(), types.Claim{Text: "claim"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := svc.AttachEvidence(context.Background(), created.ID, "f.pdf", "application/pdf", []byte("x")); err != nil {
		t.Fatalf("AttachEvidence error: %v", err)
	}

	if err := svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := svc.Get(context.Background(), created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected claim to be gone, got %v", err)
	}

	objects.mu.Lock()
	defer objects.mu.Unlock()
	if len(objects.objects) != 0 {
		t.Fatalf("expected evidence objects to be deleted, %d left", len(objects.objects))
	}
}
