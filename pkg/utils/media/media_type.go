package media

import "strings"

// Type 媒体类型分类
type Type string

const (
	TypeImage Type = "image"
	TypeVideo Type = "video"
	TypeOther Type = "other"
)

// 默认支持的视频扩展名列表
var DefaultVideoExtensions = []string{
	"mp4", "mkv", "avi", "mov", "wmv", "flv", "webm",
	"m4v", "mpg", "mpeg", "3gp", "rmvb", "ts", "m2ts",
}

// 默认支持的图片扩展名列表
var DefaultImageExtensions = []string{
	"jpg", "jpeg", "png", "gif", "bmp", "webp", "tiff", "heic",
}

// Classify 根据mimeType和文件名判断媒体类型
// mimeType优先，扩展名兜底（部分网盘不返回mimeType）
func Classify(mimeType, filename string) Type {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return TypeImage
	case strings.HasPrefix(mimeType, "video/"):
		return TypeVideo
	}

	ext := ExtractExtension(filename)
	if ext == "" {
		return TypeOther
	}

	for _, e := range DefaultImageExtensions {
		if ext == e {
			return TypeImage
		}
	}
	for _, e := range DefaultVideoExtensions {
		if ext == e {
			return TypeVideo
		}
	}

	return TypeOther
}

// IsMedia 是否为图片或视频
func (t Type) IsMedia() bool {
	return t == TypeImage || t == TypeVideo
}

// ExtractExtension 从文件名中提取扩展名（不带点号，小写）
// 例如：
//
//	"video.mp4" -> "mp4"
//	"movie.MKV" -> "mkv"
func ExtractExtension(filename string) string {
	if filename == "" {
		return ""
	}

	idx := strings.LastIndex(filename, ".")
	if idx == -1 || idx == len(filename)-1 {
		return ""
	}

	return strings.ToLower(filename[idx+1:])
}
