package store

import "sync"

// notifier fans out per-collection change signals. Channels have capacity one
// and publishes are non-blocking, so bursts of commits coalesce into a single
// wakeup; subscribers re-query and always observe the latest committed state.
type notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]watchEntry
}

type watchEntry struct {
	collections map[string]struct{}
	ch          chan struct{}
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]watchEntry)}
}

func (n *notifier) watch(collections ...string) (<-chan struct{}, func()) {
	set := make(map[string]struct{}, len(collections))
	for _, c := range collections {
		set[c] = struct{}{}
	}
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.subs[id] = watchEntry{collections: set, ch: ch}
	n.mu.Unlock()

	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if entry, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(entry.ch)
		}
	}
}

func (n *notifier) publish(collections ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, entry := range n.subs {
		for _, c := range collections {
			if _, ok := entry.collections[c]; !ok {
				continue
			}
			select {
			case entry.ch <- struct{}{}:
			default:
			}
			break
		}
	}
}
