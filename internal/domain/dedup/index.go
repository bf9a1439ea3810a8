package dedup

import (
	"sort"
	"strings"

	"github.com/cloudsaver/cloudsaver/internal/domain/entities"
	sharederrors "github.com/cloudsaver/cloudsaver/internal/shared/errors"
)

// Fingerprint 候选重复文件的分组键：规范化文件名+字节大小
// 指纹相同不代表内容相同，只有校验和一致才能确认
type Fingerprint struct {
	Name string
	Size int64
}

// NewFingerprint 由远端文件生成指纹，文件名做小写和去首尾空白规范化
func NewFingerprint(f entities.RemoteFile) Fingerprint {
	return Fingerprint{
		Name: strings.ToLower(strings.TrimSpace(f.Name)),
		Size: f.Size,
	}
}

// Group 共享同一指纹的文件组，按创建时间（次序相同时按ID）排序
type Group struct {
	Fingerprint Fingerprint
	Records     []entities.RemoteFile
}

// Index 指纹到文件组的映射
type Index struct {
	Groups map[Fingerprint]*Group
	// 缺少文件名或大小的记录，单独上报，不参与分组
	Malformed []entities.RemoteFile
}

// BuildIndex 单次遍历构建索引
// 已在远端回收站中的记录不参与；其余每条合法记录恰好落入一个组
func BuildIndex(files []entities.RemoteFile) *Index {
	idx := &Index{
		Groups: make(map[Fingerprint]*Group),
	}

	for _, f := range files {
		if f.Trashed {
			continue
		}
		if err := validate(f); err != nil {
			idx.Malformed = append(idx.Malformed, f)
			continue
		}

		fp := NewFingerprint(f)
		g, ok := idx.Groups[fp]
		if !ok {
			g = &Group{Fingerprint: fp}
			idx.Groups[fp] = g
		}
		g.Records = append(g.Records, f)
	}

	for _, g := range idx.Groups {
		sortRecords(g.Records)
	}

	return idx
}

func validate(f entities.RemoteFile) error {
	if f.Name == "" {
		return sharederrors.NewServiceError(sharederrors.ErrorCodeMalformedRecord, "record has no name: "+f.ID)
	}
	if f.Size <= 0 {
		return sharederrors.NewServiceError(sharederrors.ErrorCodeMalformedRecord, "record has no size: "+f.ID)
	}
	return nil
}

// sortRecords 创建时间升序，时间相同按ID字典序，保证可复现
func sortRecords(records []entities.RemoteFile) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}
