package parser

import (
	"errors"
	"io"
	"sync"
)

// Invalidate any caches held by a reader.
type Flusher interface {
	Flush()
}

// Present a window of a larger reader starting at Offset.
type OffsetReader struct {
	Offset int64
	Reader io.ReaderAt
}

func (self *OffsetReader) ReadAt(buf []byte, offset int64) (int, error) {
	return self.Reader.ReadAt(buf, offset+self.Offset)
}

// A page aligned caching reader. Raw devices may only be read in
// whole sectors, so all reads are rounded to page boundaries and
// served from an LRU of pages. This is the standard storage reader
// implementation handed to GetNTFSContext.
//
// ReadAt semantics:
//  1. Reading within the backing file fills the buffer completely
//     with n = len(buf) and err = nil.
//  2. Reading a range that starts inside and ends past the file
//     returns a zero padded full buffer with err = nil.
//  3. Reading entirely outside the file returns n = 0 and io.EOF.
type PagedReader struct {
	mu sync.Mutex

	reader   io.ReaderAt
	pagesize int64
	lru      *LRU

	Hits int64
	Miss int64
}

func NewPagedReader(reader io.ReaderAt, pagesize int64, cache_size int) (
	*PagedReader, error) {
	if pagesize <= 0 {
		return nil, errors.New("Invalid pagesize")
	}

	lru, err := NewLRU(cache_size, nil, "PagedReader")
	if err != nil {
		return nil, err
	}

	return &PagedReader{
		reader:   reader,
		pagesize: pagesize,
		lru:      lru,
	}, nil
}

func (self *PagedReader) ReadAt(buf []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, io.EOF
	}

	self.mu.Lock()
	defer self.mu.Unlock()

	buf_idx := 0
	for {
		to_read := int(self.pagesize - offset%self.pagesize)
		if to_read > len(buf)-buf_idx {
			to_read = len(buf) - buf_idx
		}
		if to_read == 0 {
			return buf_idx, nil
		}

		page := offset - offset%self.pagesize
		page_buf, err := self.getPage(page)
		if err != nil {
			// The whole range is outside the file.
			if buf_idx == 0 {
				return 0, err
			}

			// Ran off the end mid way - pad the rest.
			for i := buf_idx; i < len(buf); i++ {
				buf[i] = 0
			}
			return len(buf), nil
		}

		page_offset := int(offset % self.pagesize)
		copy(buf[buf_idx:buf_idx+to_read],
			page_buf[page_offset:page_offset+to_read])

		offset += int64(to_read)
		buf_idx += to_read
	}
}

func (self *PagedReader) getPage(page int64) ([]byte, error) {
	cached, pres := self.lru.Get(int(page))
	if pres {
		self.Hits++
		return cached.([]byte), nil
	}

	self.Miss++
	DebugPrint("Cache miss for %x (%x)\n", page, self.pagesize)

	page_buf := make([]byte, self.pagesize)
	n, err := self.reader.ReadAt(page_buf, page)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}

	// The tail past the file stays zero.
	self.lru.Add(int(page), page_buf)
	return page_buf, nil
}

func (self *PagedReader) Flush() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.lru.Purge()

	flusher, ok := self.reader.(Flusher)
	if ok {
		flusher.Flush()
	}
}
