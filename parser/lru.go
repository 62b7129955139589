package parser

import (
	"container/list"
	"encoding/json"
	"errors"
	"sync"

	"github.com/Velocidex/ordereddict"
)

// A small LRU used for record and page caching. Eviction invokes the
// optional callback with the dropped entry.
type LRU struct {
	mu sync.Mutex

	size      int
	name      string
	on_evict  func(key int, value interface{})
	evictList *list.List
	items     map[int]*list.Element

	hits int64
	miss int64
}

type lruEntry struct {
	key   int
	value interface{}
}

func NewLRU(size int, on_evict func(key int, value interface{}),
	name string) (*LRU, error) {
	if size <= 0 {
		return nil, errors.New("Must provide a positive size")
	}

	return &LRU{
		size:      size,
		name:      name,
		on_evict:  on_evict,
		evictList: list.New(),
		items:     make(map[int]*list.Element),
	}, nil
}

func (self *LRU) Get(key int) (interface{}, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()

	element, pres := self.items[key]
	if !pres {
		self.miss++
		return nil, false
	}

	self.hits++
	self.evictList.MoveToFront(element)
	return element.Value.(*lruEntry).value, true
}

func (self *LRU) Add(key int, value interface{}) {
	self.mu.Lock()
	defer self.mu.Unlock()

	element, pres := self.items[key]
	if pres {
		self.evictList.MoveToFront(element)
		element.Value.(*lruEntry).value = value
		return
	}

	element = self.evictList.PushFront(&lruEntry{key: key, value: value})
	self.items[key] = element

	if self.evictList.Len() > self.size {
		self.removeOldest()
	}
}

func (self *LRU) removeOldest() {
	element := self.evictList.Back()
	if element == nil {
		return
	}

	self.evictList.Remove(element)
	entry := element.Value.(*lruEntry)
	delete(self.items, entry.key)

	if self.on_evict != nil {
		self.on_evict(entry.key, entry.value)
	}
}

func (self *LRU) Len() int {
	self.mu.Lock()
	defer self.mu.Unlock()

	return self.evictList.Len()
}

func (self *LRU) Purge() {
	self.mu.Lock()
	defer self.mu.Unlock()

	for key, element := range self.items {
		if self.on_evict != nil {
			self.on_evict(key, element.Value.(*lruEntry).value)
		}
		delete(self.items, key)
	}
	self.evictList.Init()
}

func (self *LRU) Stats() *ordereddict.Dict {
	self.mu.Lock()
	defer self.mu.Unlock()

	return ordereddict.NewDict().
		Set("Name", self.name).
		Set("Size", self.evictList.Len()).
		Set("Hits", self.hits).
		Set("Miss", self.miss)
}

func (self *LRU) DebugString() string {
	serialized, _ := json.Marshal(self.Stats())
	return string(serialized)
}
