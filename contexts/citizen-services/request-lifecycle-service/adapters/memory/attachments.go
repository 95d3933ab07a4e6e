package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/google/uuid"

	domainerrors "pqrsd/contexts/citizen-services/request-lifecycle-service/domain/errors"
)

type storedAttachment struct {
	FileName string
	Checksum string
	Content  []byte
}

// AttachmentStore keeps uploaded files in memory behind opaque references.
type AttachmentStore struct {
	mu    sync.RWMutex
	files map[string]storedAttachment
}

func NewAttachmentStore() *AttachmentStore {
	return &AttachmentStore{files: make(map[string]storedAttachment)}
}

func (s *AttachmentStore) Put(_ context.Context, fileName string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", domainerrors.ErrAttachmentRequired
	}
	sum := sha256.Sum256(content)
	ref := "att_" + uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[ref] = storedAttachment{
		FileName: fileName,
		Checksum: hex.EncodeToString(sum[:]),
		Content:  append([]byte(nil), content...),
	}
	return ref, nil
}

// Checksum returns the sha256 of a stored file.
func (s *AttachmentStore) Checksum(ref string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, ok := s.files[ref]
	return file.Checksum, ok
}

func (s *AttachmentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
