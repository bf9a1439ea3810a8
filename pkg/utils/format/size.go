package format

import "fmt"

// HumanSize 将字节数格式化为可读字符串
// 例如 1536 -> "1.50 KB"；0或负数返回"Unknown"
func HumanSize(sizeInBytes int64) string {
	if sizeInBytes <= 0 {
		return "Unknown"
	}

	size := float64(sizeInBytes)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if size < 1024 {
			return fmt.Sprintf("%.2f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.2f PB", size)
}
