package biz

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"
)

// StaleMarker 接收数据目录变化通知。
type StaleMarker interface {
	MarkStale(path string)
}

var _ StaleMarker = (*IndexManager)(nil)

// DataWatcher 递归监听数据目录，受支持的文档被创建、修改、删除或重命名时
// 通知 StaleMarker。隐藏文件和隐藏目录被忽略。
type DataWatcher struct {
	root    string
	marker  StaleMarker
	watcher *fsnotify.Watcher

	done chan struct{}
	once sync.Once
}

// NewDataWatcher 创建并注册 root 下的全部目录。
func NewDataWatcher(root string, marker StaleMarker) (*DataWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	dw := &DataWatcher{
		root:    root,
		marker:  marker,
		watcher: w,
		done:    make(chan struct{}),
	}
	if err := dw.addTree(root); err != nil {
		_ = w.Close()
		return nil, err
	}
	return dw, nil
}

// Start 在后台处理事件，直到 ctx 取消或 Close 被调用。
func (w *DataWatcher) Start(ctx context.Context) {
	go w.loop(ctx)
	logger.Infow("watching data directory", "dir", w.root)
}

// Close 停止监听。可重复调用。
func (w *DataWatcher) Close(context.Context) error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *DataWatcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("data watcher error", "error", err.Error())
		}
	}
}

func (w *DataWatcher) handle(ev fsnotify.Event) {
	if hiddenUnder(w.root, ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		// 新建目录需要加入监听，目录中已有的文件视为变化。
		if err := w.addTree(ev.Name); err == nil && w.containsDocuments(ev.Name) {
			w.marker.MarkStale(ev.Name)
			return
		}
	}
	if ev.Op == fsnotify.Chmod {
		return
	}
	if _, ok := extractors[strings.ToLower(filepath.Ext(ev.Name))]; ok {
		w.marker.MarkStale(ev.Name)
	}
}

// addTree 注册 dir 及其所有非隐藏子目录。dir 不是目录时返回错误。
func (w *DataWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if path == dir {
				return errors.New("not a directory")
			}
			return nil
		}
		if path != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *DataWatcher) containsDocuments(dir string) bool {
	found := false
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || found {
			return filepath.SkipAll
		}
		if !d.IsDir() {
			if _, ok := extractors[strings.ToLower(filepath.Ext(path))]; ok {
				found = true
				return filepath.SkipAll
			}
		}
		return nil
	})
	return found
}

// hiddenUnder 报告 path 相对 root 的任一段是否以 . 开头。
func hiddenUnder(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}
