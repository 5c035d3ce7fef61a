package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/iabetor/speakd/internal/logger"
)

// janitorInterval 是清理任务的执行间隔。
const janitorInterval = 10 * time.Minute

// Pruner 删除早于指定时间的历史记录，可选。
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor 定期删除超过保留时长的音频文件。
type Janitor struct {
	dir       *Dir
	retention time.Duration
	pruner    Pruner
	now       func() time.Time
}

// NewJanitor 创建清理任务。retention <= 0 时 Run 直接返回。
func NewJanitor(dir *Dir, retention time.Duration, pruner Pruner) *Janitor {
	return &Janitor{
		dir:       dir,
		retention: retention,
		pruner:    pruner,
		now:       time.Now,
	}
}

// Run 阻塞运行清理循环，直到 ctx 被取消。
func (j *Janitor) Run(ctx context.Context) {
	if j.retention <= 0 {
		return
	}
	logger.Infof("[storage] 清理任务已启动 (保留 %s)", j.retention)

	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	j.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep 执行一次清理，返回删除的文件数量。
func (j *Janitor) Sweep(ctx context.Context) int {
	cutoff := j.now().Add(-j.retention)

	entries, err := os.ReadDir(j.dir.Path())
	if err != nil {
		logger.Warnf("[storage] 读取输出目录失败: %v", err)
		return 0
	}

	removed := 0
	for _, e := range entries {
		path := filepath.Join(j.dir.Path(), e.Name())
		if e.IsDir() || !j.dir.Contains(path) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warnf("[storage] 删除过期文件失败: %s: %v", path, err)
			continue
		}
		removed++
	}

	if j.pruner != nil {
		if n, err := j.pruner.PruneBefore(ctx, cutoff); err != nil {
			logger.Warnf("[storage] 清理历史记录失败: %v", err)
		} else if n > 0 {
			logger.Debugf("[storage] 清理历史记录 %d 条", n)
		}
	}

	if removed > 0 {
		logger.Infof("[storage] 清理过期音频文件 %d 个", removed)
	}
	return removed
}
