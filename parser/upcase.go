package parser

const (
	// One entry per code unit of the Basic Multilingual Plane.
	UPCASE_CHARACTER_COUNT = 65536
	UPCASE_TABLE_SIZE      = UPCASE_CHARACTER_COUNT * 2
)

// The $UpCase file maps every 16 bit code unit to its uppercase
// form. The table differs between Windows versions, so it is always
// read from the volume being parsed rather than hardcoded.
type UpcaseTable struct {
	characters []uint16
}

func NewUpcaseTable(data []byte) (*UpcaseTable, error) {
	if len(data) != UPCASE_TABLE_SIZE {
		return nil, &InvalidUpcaseTableSizeError{
			Expected: UPCASE_TABLE_SIZE,
			Actual:   int64(len(data)),
		}
	}

	return &UpcaseTable{characters: UTF16Units(data)}, nil
}

// A character without an uppercase equivalent maps to itself.
func (self *UpcaseTable) Upcase(c uint16) uint16 {
	return self.characters[c]
}

// Compare two UTF-16 strings after case folding each code unit.
func (self *UpcaseTable) CompareFold(a, b []uint16) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		ua := self.Upcase(a[i])
		ub := self.Upcase(b[i])
		if ua != ub {
			if ua < ub {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

// Load the table from MFT record 10's unnamed $DATA stream.
func ReadUpcaseTable(ntfs *NTFSContext) (*UpcaseTable, error) {
	upcase_entry, err := ntfs.GetMFT(UPCASE_RECORD)
	if err != nil {
		return nil, err
	}

	stream, err := OpenStream(ntfs, upcase_entry, ATTR_TYPE_DATA, "")
	if err != nil {
		return nil, err
	}

	if stream.Size() != UPCASE_TABLE_SIZE {
		return nil, &InvalidUpcaseTableSizeError{
			Expected: UPCASE_TABLE_SIZE,
			Actual:   stream.Size(),
		}
	}

	data := make([]byte, UPCASE_TABLE_SIZE)
	err = stream.ReadFullAt(data, 0)
	if err != nil {
		return nil, err
	}

	return NewUpcaseTable(data)
}

// Fallback fold for volumes where $UpCase has not been loaded yet:
// ASCII only, matching what every upcase table contains for that
// range.
func asciiUpcase(c uint16) uint16 {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

func compareFoldASCII(a, b []uint16) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		ua := asciiUpcase(a[i])
		ub := asciiUpcase(b[i])
		if ua != ub {
			if ua < ub {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

// Case sensitive comparison used as the tiebreak after a case folded
// match, so names differing only in case stay distinct and strictly
// ordered.
func compareExact(a, b []uint16) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}
