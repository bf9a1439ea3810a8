package transcoder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cloudsaver/cloudsaver/internal/application/contracts"
	"github.com/cloudsaver/cloudsaver/internal/infrastructure/config"
	sharederrors "github.com/cloudsaver/cloudsaver/internal/shared/errors"
	"github.com/cloudsaver/cloudsaver/pkg/httpclient"
	"github.com/cloudsaver/cloudsaver/pkg/logger"
)

// Client 外部转码服务客户端
// 转码参数（编码器/码率细节）由服务端解释，这里只传质量档位
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// VersionResponse 转码服务版本信息
type VersionResponse struct {
	Version string   `json:"version"`
	Codecs  []string `json:"codecs"`
}

// NewClient 创建转码服务客户端
func NewClient(cfg config.TranscoderConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Ping 探活并获取服务版本
func (c *Client) Ping(ctx context.Context) (*VersionResponse, error) {
	opts := httpclient.DefaultOptions().
		WithContext(ctx).
		WithClient(c.httpClient)

	var resp VersionResponse
	if err := httpclient.GetJSON(c.baseURL+"/version", &resp, opts); err != nil {
		return nil, fmt.Errorf("transcoder unreachable: %w", err)
	}
	return &resp, nil
}

// Reduce 调用转码服务生成降质产物
// 产物体积不满足最低压缩比时返回NO_SAVINGS，原件由调用方保留
func (c *Client) Reduce(ctx context.Context, req contracts.ReduceRequest) (*contracts.ReduceResult, error) {
	q := url.Values{}
	q.Set("media_type", string(req.MediaType))
	q.Set("quality", req.TargetQuality)
	q.Set("preserve_metadata", strconv.FormatBool(req.PreserveMetadata))
	if req.Filename != "" {
		q.Set("filename", req.Filename)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcode?"+q.Encode(), req.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcode request: %w", err)
	}
	httpReq.Header.Set("Content-Type", req.MimeType)
	if req.SourceSize > 0 {
		httpReq.ContentLength = req.SourceSize
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, sharederrors.NewServiceErrorWithCause(sharederrors.ErrorCodeTransient, "transcode request failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, sharederrors.NewServiceError(sharederrors.ErrorCodeTranscodeFailed,
			fmt.Sprintf("transcoder returned %d: %s", resp.StatusCode, string(body)))
	}

	outSize := resp.ContentLength
	if outSize < 0 {
		resp.Body.Close()
		return nil, sharederrors.NewServiceError(sharederrors.ErrorCodeTranscodeFailed,
			"transcoder response has no content length")
	}

	if !meetsReductionFloor(req.SourceSize, outSize, req.MinSizeReductionRatio) {
		resp.Body.Close()
		return nil, sharederrors.NewServiceErrorWithDetails(sharederrors.ErrorCodeNoSavings,
			"output does not meet minimum size reduction",
			map[string]interface{}{
				"input_size":  req.SourceSize,
				"output_size": outSize,
				"min_ratio":   req.MinSizeReductionRatio,
			})
	}

	logger.Debug("transcode accepted",
		"filename", req.Filename, "input_size", req.SourceSize, "output_size", outSize)

	return &contracts.ReduceResult{
		Payload: resp.Body,
		Size:    outSize,
	}, nil
}

// meetsReductionFloor 产物必须比原件至少小minRatio比例
// minRatio=0.3时，100字节原件的产物必须<=70字节
func meetsReductionFloor(inSize, outSize int64, minRatio float64) bool {
	if inSize <= 0 {
		return false
	}
	saved := float64(inSize-outSize) / float64(inSize)
	return saved >= minRatio && outSize < inSize
}
