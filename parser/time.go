package parser

import (
	"fmt"
	"time"
)

// A timestamp in Windows FILETIME format: 100ns intervals since
// 1601-01-01 UTC.
type WinFileTime struct {
	time.Time
}

func filetimeToUnixNano(ft uint64) int64 {
	return (int64(ft) - 11644473600*10000000) * 100
}

func ParseWinFileTime(buf []byte) *WinFileTime {
	ft := u64(buf)
	return &WinFileTime{time.Unix(0, filetimeToUnixNano(ft)).UTC()}
}

func (self *WinFileTime) DebugString() string {
	return fmt.Sprintf("%v", self.Time)
}

type TimeStamps struct {
	CreateTime       time.Time
	FileModifiedTime time.Time
	MFTModifiedTime  time.Time
	AccessedTime     time.Time
}
