package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/iabetor/speakd/internal/logger"
)

// filePrefix 是生成音频文件名的固定前缀。
const filePrefix = "speech_"

// ensureMu 串行化目录初始化，多个 goroutine 同时启动时也只有一个会执行删除/创建。
var ensureMu sync.Mutex

// EnsureDir 确保 dir 是一个可用目录。
// 若同名路径是普通文件则先删除再创建目录；目录已存在时什么也不做。
func EnsureDir(dir string) error {
	ensureMu.Lock()
	defer ensureMu.Unlock()

	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		logger.Warnf("[storage] %s 是普通文件，删除后重建为目录", dir)
		if err := os.Remove(dir); err != nil {
			return fmt.Errorf("[storage] 删除同名文件 %s 失败: %w", dir, err)
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("[storage] 检查目录 %s 失败: %w", dir, err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("[storage] 创建目录 %s 失败: %w", dir, err)
	}
	logger.Infof("[storage] 输出目录已就绪: %s", dir)
	return nil
}

// Dir 是生成音频文件的存放目录。
type Dir struct {
	path string
}

// Open 初始化输出目录并返回 Dir。
func Open(path string) (*Dir, error) {
	if err := EnsureDir(path); err != nil {
		return nil, err
	}
	return &Dir{path: path}, nil
}

// Path 返回目录路径。
func (d *Dir) Path() string {
	return d.path
}

// NewFile 生成一个不会与并发请求冲突的新文件路径，返回随机 ID 和完整路径。
// 文件本身不会被创建。
func (d *Dir) NewFile(ext string) (id string, path string) {
	id = strings.ReplaceAll(uuid.NewString(), "-", "")
	return id, filepath.Join(d.path, filePrefix+id+ext)
}

// Sibling 返回与 path 同名但扩展名不同的路径，如 a.wav -> a.mp3。
func Sibling(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// Contains 判断 path 是否位于输出目录内，且是本服务生成的文件。
func (d *Dir) Contains(path string) bool {
	rel, err := filepath.Rel(d.path, path)
	if err != nil || strings.HasPrefix(rel, "..") || strings.ContainsRune(rel, filepath.Separator) {
		return false
	}
	return strings.HasPrefix(rel, filePrefix)
}
