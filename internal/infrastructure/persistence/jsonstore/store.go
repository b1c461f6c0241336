// Package jsonstore 提供基于平面 JSON 文件的集合存储
//
// 每个集合对应一个 JSON 数组文件。同一路径的并发访问由进程内
// 咨询锁串行化；写入走临时文件加原子改名，保证并发读取方
// 永远不会观察到半写状态
package jsonstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gicagen-api/pkg/logger"
)

var (
	locksMu sync.Mutex
	locks   = map[string]*sync.Mutex{}
)

// lockFor 返回路径对应的进程内咨询锁
func lockFor(path string) *sync.Mutex {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	locksMu.Lock()
	defer locksMu.Unlock()
	if l, ok := locks[abs]; ok {
		return l
	}
	l := &sync.Mutex{}
	locks[abs] = l
	return l
}

// Collection 单个 JSON 数组文件上的类型化集合
type Collection[T any] struct {
	path string
	mu   *sync.Mutex
}

// NewCollection 创建集合
func NewCollection[T any](path string) *Collection[T] {
	return &Collection[T]{path: path, mu: lockFor(path)}
}

// Load 读取全部条目，文件不存在时初始化为空集合
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx)
}

// Replace 原子地整体替换集合内容
func (c *Collection[T]) Replace(ctx context.Context, items []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(items)
}

// Update 在锁内执行加载-修改-写回
func (c *Collection[T]) Update(ctx context.Context, fn func(items []T) ([]T, error)) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	next, err := fn(items)
	if err != nil {
		return nil, err
	}
	if err := c.writeLocked(next); err != nil {
		return nil, err
	}
	return next, nil
}

// loadLocked 读取文件并在损坏时尽力恢复
func (c *Collection[T]) loadLocked(ctx context.Context) ([]T, error) {
	raw, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		if werr := c.writeLocked([]T{}); werr != nil {
			return nil, werr
		}
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.path, err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return []T{}, nil
	}

	var items []T
	if err := json.Unmarshal(trimmed, &items); err == nil {
		return items, nil
	}

	// 尝试解出前缀中的第一个合法 JSON 数组（追加写坏尾部的常见情形）
	logger.Warn(ctx, "corrupted json collection, attempting recovery", "path", c.path)
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if derr := dec.Decode(&items); derr == nil {
		// 自愈：用合法部分重写文件
		if werr := c.writeLocked(items); werr == nil {
			logger.Info(ctx, "recovered json collection", "path", c.path, "items", len(items))
			return items, nil
		}
	}

	// 无法恢复时重置为空集合，避免阻塞整个应用
	logger.Error(ctx, "unrecoverable json collection, resetting", nil, "path", c.path)
	if werr := c.writeLocked([]T{}); werr != nil {
		return nil, werr
	}
	return []T{}, nil
}

// writeLocked 临时文件加原子改名写入
func (c *Collection[T]) writeLocked(items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", c.path, err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", c.path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp for %s: %w", c.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", c.path, err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", c.path, err)
	}
	return nil
}
