// Package artifact holds finished recordings behind revocable object URLs.
package artifact

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const urlPrefix = "blob:voicerec/"

// Artifact is one finished take.
type Artifact struct {
	Bytes   []byte
	URL     string
	Name    string
	MIME    string
	Created time.Time
}

func (a *Artifact) Size() int { return len(a.Bytes) }

// Store hands out object URLs and keeps the artifacts they point to alive
// until revoked.
type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	live    map[string]*Artifact
	revoked int
}

func NewStore() *Store {
	return &Store{now: time.Now, live: make(map[string]*Artifact)}
}

// Create registers bytes under a fresh URL.
func (s *Store) Create(name, mime string, data []byte) *Artifact {
	a := &Artifact{
		Bytes: data,
		URL:   urlPrefix + uuid.NewString(),
		Name:  name,
		MIME:  mime,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Created = s.now()
	s.live[a.URL] = a
	return a
}

// Resolve returns the artifact behind url, if it is still live.
func (s *Store) Resolve(url string) (*Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.live[url]
	return a, ok
}

// Revoke releases url. It reports false when url is unknown or was already
// released.
func (s *Store) Revoke(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[url]; !ok {
		return false
	}
	delete(s.live, url)
	s.revoked++
	return true
}

// Live is the number of URLs not yet revoked.
func (s *Store) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Revoked is the number of successful revocations.
func (s *Store) Revoked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked
}
