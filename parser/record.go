package parser

import (
	"io"
)

// Multi sector records (MFT entries and INDX blocks) protect each
// sector against torn writes with an update sequence array: the last
// two bytes of every sector are replaced on disk by the update
// sequence number (USN) and the real bytes are kept in the array.
// Loading a record means reading it whole and undoing that swap.
//
// The fixup is idempotent: a trailer that no longer matches the USN
// but already equals its replacement entry is accepted and left
// alone, so decoding an already fixed up buffer is a no-op.
func ApplyFixups(buffer []byte, position int64, sector_size int64) error {
	record_size := int64(len(buffer))
	if record_size < 8 {
		return &InvalidUpdateSequenceError{Position: position}
	}

	usa_offset := int64(u16(buffer[4:6]))
	usa_count := int64(u16(buffer[6:8]))

	if usa_count == 0 {
		return &InvalidUpdateSequenceError{Position: position}
	}

	usa_end, ok := checkedAdd(usa_offset, 2*usa_count)
	if !ok || usa_end > record_size {
		return &InvalidUpdateSequenceError{Position: position + usa_offset}
	}

	covered, ok := checkedMul(usa_count-1, sector_size)
	if !ok || covered > record_size {
		return &InvalidUpdateSequenceError{Position: position + usa_offset}
	}

	usn := buffer[usa_offset : usa_offset+2]

	for i := int64(1); i < usa_count; i++ {
		entry := buffer[usa_offset+2*i : usa_offset+2*i+2]
		trailer_offset := i*sector_size - 2
		trailer := buffer[trailer_offset : trailer_offset+2]

		if trailer[0] == usn[0] && trailer[1] == usn[1] {
			trailer[0] = entry[0]
			trailer[1] = entry[1]
			continue
		}

		// Already fixed up.
		if trailer[0] == entry[0] && trailer[1] == entry[1] {
			continue
		}

		return &InvalidUpdateSequenceError{
			Position: position + trailer_offset}
	}

	return nil
}

// Read record_size bytes at the given offset, check the 4 byte
// signature and apply the update sequence fixups. Returns the fixed
// up buffer.
func ReadFixedUpRecord(
	reader io.ReaderAt,
	offset int64,
	record_size int64,
	sector_size int64,
	expected_signature string) ([]byte, error) {

	if record_size <= 0 || record_size > MAX_RECORD_SIZE ||
		sector_size <= 0 {
		return nil, &UnsupportedRecordSizeError{Size: record_size}
	}

	buffer := make([]byte, record_size)
	n, err := reader.ReadAt(buffer, offset)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if int64(n) < record_size {
		return nil, ShortReadError
	}

	signature := string(buffer[:4])
	if signature != expected_signature {
		return nil, &InvalidRecordSignatureError{
			Expected: expected_signature,
			Found:    signature,
			Position: offset,
		}
	}

	err = ApplyFixups(buffer, offset, sector_size)
	if err != nil {
		return nil, err
	}

	return buffer, nil
}
