package server

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/siherrmann/loregraph/model"
)

const defaultRetention = 1024

// entry is one polled request. Neither result nor failure set means pending.
type entry struct {
	result  *model.VerificationResult
	failure string
}

// resultStore keeps the most recent background verification results in an
// LRU cache. Once full, the least recently written request id is evicted.
type resultStore struct {
	cache *lru.Cache[string, *entry]
}

func newResultStore(capacity int) *resultStore {
	if capacity <= 0 {
		capacity = defaultRetention
	}
	cache, err := lru.New[string, *entry](capacity)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &resultStore{cache: cache}
}

// expect registers a pending request unless its outcome already arrived
func (s *resultStore) expect(requestID string) {
	s.cache.ContainsOrAdd(requestID, &entry{})
}

func (s *resultStore) deliver(requestID string, result *model.VerificationResult) {
	s.cache.Add(requestID, &entry{result: result})
}

// fail records that no result will arrive for requestID
func (s *resultStore) fail(requestID string, reason string) {
	s.cache.Add(requestID, &entry{failure: reason})
}

// get returns the entry and whether the request id is known at all
func (s *resultStore) get(requestID string) (*entry, bool) {
	return s.cache.Peek(requestID)
}
