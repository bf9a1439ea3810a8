package contracts

import "github.com/cloudsaver/cloudsaver/internal/domain/entities"

// LedgerStore 已处理文件台账端口
// 以远端文件ID为键；Upsert必须原子且在并发写入者之间串行化
type LedgerStore interface {
	Get(id string) (entities.LedgerEntry, bool, error)
	Upsert(entry entities.LedgerEntry) error
	All() ([]entities.LedgerEntry, error)
}
