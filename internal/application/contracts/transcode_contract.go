package contracts

import (
	"context"
	"io"

	"github.com/cloudsaver/cloudsaver/pkg/utils/media"
)

// ReduceRequest 降质转码请求
type ReduceRequest struct {
	Source     io.Reader
	SourceSize int64
	Filename   string
	MimeType   string
	MediaType  media.Type
	// TargetQuality 目标质量档位，由转码服务解释（如low/medium/high）
	TargetQuality string
	// PreserveMetadata 是否保留EXIF等元数据
	PreserveMetadata bool
	// MinSizeReductionRatio 最低压缩比，产物不足此比例时拒绝
	// 0.3表示产物至少比原件小30%
	MinSizeReductionRatio float64
}

// ReduceResult 降质转码产物
type ReduceResult struct {
	Payload io.ReadCloser
	Size    int64
}

// TranscodeService 降质转码端口（外部协作方）
// 失败码：输入损坏或编码不支持TRANSCODE_FAILED，压缩收益不足NO_SAVINGS
// 两者都不致命，调用方保留原件
type TranscodeService interface {
	Reduce(ctx context.Context, req ReduceRequest) (*ReduceResult, error)
}
