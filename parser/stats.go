package parser

import (
	"encoding/json"
	"sync"
)

var (
	STATS = Stats{}
)

type Stats struct {
	mu sync.Mutex

	MFT_ENTRY            int
	NTFSContext          int
	STANDARD_INFORMATION int
	FILE_NAME            int
	MFT_ENTRY_attributes int
	INDEX_NODE           int
}

func (self *Stats) DebugString() string {
	self.mu.Lock()
	defer self.mu.Unlock()

	serialized, _ := json.MarshalIndent(self, " ", " ")
	return string(serialized)
}

func (self *Stats) Inc_MFT_ENTRY() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.MFT_ENTRY++
}

func (self *Stats) Inc_NTFSContext() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.NTFSContext++
}

func (self *Stats) Inc_STANDARD_INFORMATION() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.STANDARD_INFORMATION++
}

func (self *Stats) Inc_FILE_NAME() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.FILE_NAME++
}

func (self *Stats) Inc_MFT_ENTRY_attributes() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.MFT_ENTRY_attributes++
}

func (self *Stats) Inc_INDEX_NODE() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.INDEX_NODE++
}
