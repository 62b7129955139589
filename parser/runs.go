package parser

import (
	"fmt"
)

// A single extent of a non resident attribute. Length is counted in
// clusters. A sparse run has no LCN - IsSparse marks it and LCN is
// left zero.
type Run struct {
	LCN      int64
	Length   int64
	IsSparse bool
}

func (self Run) String() string {
	if self.IsSparse {
		return fmt.Sprintf("Sparse(%d)", self.Length)
	}
	return fmt.Sprintf("%d+%d", self.LCN, self.Length)
}

// Decode a mapping pair stream into absolute runs.
//
// Each pair starts with a header byte: the low nibble is the byte
// width of the cluster count, the high nibble the byte width of the
// signed LCN delta. A zero header ends the stream. The LCN delta
// accumulates across runs so that adjacent extents compact well; a
// zero width delta marks a sparse run.
//
// position is the absolute volume offset of the first byte, used for
// error reporting. total_clusters bounds every non sparse run; pass 0
// to skip the range check. Attribute decoding always passes the
// volume's cluster count, which is known before the $MFT bootstrap.
func ParseRunList(buffer []byte, position int64, total_clusters int64) (
	[]Run, error) {

	result := []Run{}
	current_lcn := int64(0)
	offset := 0

	for offset < len(buffer) {
		header := buffer[offset]
		if header == 0 {
			break
		}

		length_width := int(header & 0x0F)
		delta_width := int(header >> 4)
		pair_position := position + int64(offset)
		offset++

		if length_width == 0 || length_width > 8 || delta_width > 8 {
			return nil, &InvalidDataRunError{Position: pair_position}
		}

		if offset+length_width+delta_width > len(buffer) {
			return nil, &InvalidDataRunError{Position: pair_position}
		}

		length := int64(0)
		for i := length_width - 1; i >= 0; i-- {
			length = length<<8 | int64(buffer[offset+i])
		}
		offset += length_width

		// Bail out early - a zero cluster run would never advance
		// the stream position.
		if length <= 0 {
			return nil, &InvalidDataRunError{Position: pair_position}
		}

		if delta_width == 0 {
			result = append(result, Run{
				Length:   length,
				IsSparse: true,
			})
			continue
		}

		// Sign extend from the top byte of the delta.
		delta := int64(0)
		if buffer[offset+delta_width-1]&0x80 != 0 {
			delta = -1
		}
		for i := delta_width - 1; i >= 0; i-- {
			delta = delta<<8 | int64(buffer[offset+i])
		}
		offset += delta_width

		current_lcn += delta
		if current_lcn < 0 ||
			(total_clusters > 0 && current_lcn+length > total_clusters) {
			return nil, &InvalidDataRunError{Position: pair_position}
		}

		result = append(result, Run{
			LCN:    current_lcn,
			Length: length,
		})
	}

	return result, nil
}

// Total cluster count of a run set.
func RunListLength(runs []Run) int64 {
	total := int64(0)
	for _, run := range runs {
		total += run.Length
	}
	return total
}
