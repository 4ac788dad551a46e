package kb

import "sync/atomic"

// Snapshot is the build-then-publish holder for the knowledge base in use.
// A refresh builds a brand-new knowledge base off to the side and only then
// swaps it in; in-flight readers keep whatever snapshot they already loaded
// and never observe a half-built structure. There is no partial update.
type Snapshot struct {
	current atomic.Pointer[KnowledgeBase]
}

// Publish atomically replaces the knowledge base in use. The argument must
// be fully built; a partially built knowledge base must never be published.
func (s *Snapshot) Publish(knowledgeBase *KnowledgeBase) {
	s.current.Store(knowledgeBase)
}

// Current returns the published knowledge base, or nil when nothing has
// been published yet. Callers hold the returned pointer for the duration of
// their read; later publishes do not affect it.
func (s *Snapshot) Current() *KnowledgeBase {
	return s.current.Load()
}
