package entities

import "time"

// LedgerEntry 已处理文件台账条目
// 替换确认落盘后写入；校验和匹配的文件不会被重复转码
type LedgerEntry struct {
	FileID       string    `json:"file_id"`
	Checksum     string    `json:"checksum,omitempty"`
	Size         int64     `json:"size"`
	ModifiedAt   time.Time `json:"modified_at"`
	QualityLevel string    `json:"quality_level"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// Matches 判断台账条目是否仍与当前远端文件一致
// 有校验和时以校验和为准，否则退化为大小+修改时间比较
func (e LedgerEntry) Matches(f RemoteFile) bool {
	if e.Checksum != "" && f.MD5Checksum != "" {
		return e.Checksum == f.MD5Checksum
	}
	return e.Size == f.Size && e.ModifiedAt.Equal(f.ModifiedAt)
}
