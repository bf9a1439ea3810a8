package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/cloudsaver/cloudsaver/internal/domain/entities"
	"github.com/cloudsaver/cloudsaver/internal/infrastructure/config"
	"github.com/cloudsaver/cloudsaver/internal/infrastructure/ratelimit"
	"github.com/cloudsaver/cloudsaver/pkg/logger"
	"github.com/cloudsaver/cloudsaver/pkg/utils/media"
)

// 媒体文件查询条件，与全量扫描二选一
const mediaQuery = "mimeType contains 'image/' or mimeType contains 'video/'"

const listFields = "nextPageToken, files(id, name, size, md5Checksum, mimeType, createdTime, modifiedTime, trashed)"

const fileFields = "id, name, size, md5Checksum, mimeType, createdTime, modifiedTime, trashed"

// Client Google Drive目录适配器
type Client struct {
	service     *gdrive.Service
	pageSize    int64
	mediaOnly   bool
	rateLimiter *ratelimit.RateLimiter
}

// NewClient 从配置构建Drive客户端
// 凭据获取由外部完成：credentials_file为OAuth客户端配置，
// token_file为已授权的用户token（由独立的登录步骤写入）
func NewClient(ctx context.Context, cfg config.DriveConfig) (*Client, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	oauthCfg, err := google.ConfigFromJSON(b, gdrive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	token, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load oauth token (run the auth setup first): %w", err)
	}

	httpClient := oauthCfg.Client(ctx, token)
	httpClient.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second

	service, err := gdrive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &Client{
		service:     service,
		pageSize:    cfg.PageSize,
		mediaOnly:   cfg.MediaOnly,
		rateLimiter: ratelimit.NewRateLimiter(cfg.QPS),
	}, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, err
	}
	return token, nil
}

// RateLimiter 暴露限制器，重试层在限流时做加性降速
func (c *Client) RateLimiter() *ratelimit.RateLimiter {
	return c.rateLimiter
}

// ListFiles 分页拉取全量文件清单
func (c *Client) ListFiles(ctx context.Context) ([]entities.RemoteFile, error) {
	var files []entities.RemoteFile
	pageToken := ""

	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait interrupted: %w", err)
		}

		call := c.service.Files.List().
			Context(ctx).
			PageSize(c.pageSize).
			Spaces("drive").
			Fields(listFields)
		if c.mediaOnly {
			call = call.Q(mediaQuery)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, mapError("list files", err)
		}

		for _, f := range resp.Files {
			files = append(files, toEntity(f))
		}

		logger.Debug("drive page fetched", "page_files", len(resp.Files), "total", len(files))

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return files, nil
}

// MoveToTrash 移入回收站，不做物理删除
func (c *Client) MoveToTrash(ctx context.Context, id string) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait interrupted: %w", err)
	}

	_, err := c.service.Files.Update(id, &gdrive.File{Trashed: true}).
		Context(ctx).
		Fields("id, trashed").
		Do()
	if err != nil {
		return mapError("move to trash", err)
	}
	return nil
}

// Download 下载文件内容
func (c *Client) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait interrupted: %w", err)
	}

	resp, err := c.service.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return nil, mapError("download", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, mapError("download", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return resp.Body, nil
}

// Upload 上传新文件并等待远端确认
func (c *Client) Upload(ctx context.Context, name, mimeType string, r io.Reader, size int64) (entities.RemoteFile, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return entities.RemoteFile{}, fmt.Errorf("rate limit wait interrupted: %w", err)
	}

	meta := &gdrive.File{
		Name:     name,
		MimeType: mimeType,
	}

	created, err := c.service.Files.Create(meta).
		Context(ctx).
		Media(r, googleapi.ContentType(mimeType)).
		Fields(fileFields).
		Do()
	if err != nil {
		return entities.RemoteFile{}, mapError("upload", err)
	}

	f := toEntity(created)
	if size > 0 && f.Size > 0 && f.Size != size {
		// 远端确认的大小与本地产物不一致，按未完成上传处理
		return entities.RemoteFile{}, mapError("upload",
			fmt.Errorf("uploaded size mismatch: sent %d, stored %d", size, f.Size))
	}

	return f, nil
}

func toEntity(f *gdrive.File) entities.RemoteFile {
	createdAt, _ := time.Parse(time.RFC3339, f.CreatedTime)
	modifiedAt, _ := time.Parse(time.RFC3339, f.ModifiedTime)

	return entities.RemoteFile{
		ID:          f.Id,
		Name:        f.Name,
		Size:        f.Size,
		MD5Checksum: f.Md5Checksum,
		MimeType:    f.MimeType,
		MediaType:   media.Classify(f.MimeType, f.Name),
		CreatedAt:   createdAt,
		ModifiedAt:  modifiedAt,
		Trashed:     f.Trashed,
	}
}
