// Package storage 凭证文档的落盘存储。
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStore 按发行年月分目录保存文档原始字节，实现 domain.DocumentStore。
// 文件一经写入不再改写，读取返回与写入完全一致的字节。
type FilesystemStore struct {
	root string
}

// NewFilesystemStore 创建存储，根目录不存在时创建
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create document root: %w", err)
	}
	return &FilesystemStore{root: root}, nil
}

// Write 原样保存字节，返回相对存储路径
func (s *FilesystemStore) Write(ctx context.Context, serial string, data []byte) (string, error) {
	// BOL-20260828-XXXXXXXX -> 2026/08
	subdir := ""
	parts := strings.Split(serial, "-")
	if len(parts) == 3 && len(parts[1]) == 8 {
		subdir = filepath.Join(parts[1][:4], parts[1][4:6])
	}

	dir := filepath.Join(s.root, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create document dir: %w", err)
	}

	rel := filepath.Join(subdir, serial+".html")
	full := filepath.Join(s.root, rel)
	if _, err := os.Stat(full); err == nil {
		return "", fmt.Errorf("document already exists: %s", rel)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return rel, nil
}

// Read 读取文档原始字节
func (s *FilesystemStore) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, path))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}
