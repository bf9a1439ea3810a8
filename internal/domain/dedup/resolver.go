package dedup

import "github.com/cloudsaver/cloudsaver/internal/domain/entities"

// Partition 文件组的去重裁决结果
type Partition struct {
	// Keeps 保留的记录；无冲突时恰好一条，指纹冲突时为全部记录
	Keeps []entities.RemoteFile
	// Redundant 待移入回收站的冗余记录
	Redundant []entities.RemoteFile
	// Collision 组内校验和不一致，视为不同文件，全部保留
	Collision bool
}

// Resolve 对一个文件组做keep/redundant划分
// 裁决规则（确定性，同一输入必得同一结果）：
//  1. 组内存在不一致的非空校验和 -> 指纹冲突，全部保留
//  2. 否则最早创建的记录保留，其余冗余
//  3. 创建时间并列时ID字典序最小者保留（Records已按此排序）
func Resolve(g *Group) Partition {
	if len(g.Records) <= 1 {
		return Partition{Keeps: g.Records}
	}

	if hasChecksumConflict(g.Records) {
		return Partition{Keeps: g.Records, Collision: true}
	}

	return Partition{
		Keeps:     g.Records[:1],
		Redundant: g.Records[1:],
	}
}

// hasChecksumConflict 只在至少两条记录带有校验和且互不相同时成立
// 缺失校验和的记录无法证伪，按同内容对待
func hasChecksumConflict(records []entities.RemoteFile) bool {
	first := ""
	for _, r := range records {
		if r.MD5Checksum == "" {
			continue
		}
		if first == "" {
			first = r.MD5Checksum
			continue
		}
		if r.MD5Checksum != first {
			return true
		}
	}
	return false
}
