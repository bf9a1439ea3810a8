package entities

import (
	"time"

	"github.com/cloudsaver/cloudsaver/pkg/utils/media"
)

// RemoteFile 网盘文件快照，每次运行重新拉取
type RemoteFile struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Size        int64      `json:"size"`
	MD5Checksum string     `json:"md5_checksum,omitempty"`
	MimeType    string     `json:"mime_type"`
	MediaType   media.Type `json:"media_type"`
	CreatedAt   time.Time  `json:"created_at"`
	ModifiedAt  time.Time  `json:"modified_at"`
	Trashed     bool       `json:"trashed"`
}

// IsMedia 是否为图片或视频文件
func (f RemoteFile) IsMedia() bool {
	return f.MediaType.IsMedia()
}

// FileState 单个文件在一次运行中的状态
type FileState string

const (
	FileStateListed        FileState = "listed"
	FileStateIndexed       FileState = "indexed"
	FileStateDeduplicating FileState = "deduplicating"
	FileStateSkipped       FileState = "skipped"
	FileStateTrashing      FileState = "trashing"
	FileStateTranscoding   FileState = "transcoding"
	FileStateReplacing     FileState = "replacing"
	FileStateLedgered      FileState = "ledgered"
	FileStateFailed        FileState = "failed"
)
