package biz

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kart-io/logger"
	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"
)

// ErrNoDocuments 表示数据目录中没有可读取的文档。
var ErrNoDocuments = errors.New("no files found")

// Document 表示抽取文本后的单个源文件。
type Document struct {
	// ID 相对路径的 sha256。
	ID string
	// Path 文件的完整路径。
	Path string
	// Name 相对数据目录的路径，使用 / 分隔。
	Name string
	// Text 抽取出的纯文本。
	Text string
	// Metadata 文件元信息（file_name, file_type, file_size, last_modified_date）。
	Metadata map[string]string
}

// extractFunc 从文件中抽取纯文本。
type extractFunc func(path string) (string, error)

var extractors = map[string]extractFunc{
	".txt":  readPlain,
	".md":   readPlain,
	".mdx":  readPlain,
	".csv":  readPlain,
	".json": readPlain,
	".yaml": readPlain,
	".yml":  readPlain,
	".pdf":  readPDF,
	".html": readHTML,
	".htm":  readHTML,
}

// SupportedExtensions 返回支持的文件扩展名（已排序）。
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extractors))
	for ext := range extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// DocumentReader 读取源文档。
type DocumentReader interface {
	Read(ctx context.Context) ([]*Document, error)
}

// DirectoryReader 递归读取目录下的所有受支持文件，跳过隐藏文件和隐藏目录。
type DirectoryReader struct {
	root        string
	concurrency int
}

// NewDirectoryReader 创建目录读取器，concurrency 为并发读取的文件数。
func NewDirectoryReader(root string, concurrency int) *DirectoryReader {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &DirectoryReader{root: root, concurrency: concurrency}
}

// Read 读取所有文档，结果按相对路径排序。
func (r *DirectoryReader) Read(ctx context.Context) ([]*Document, error) {
	files, err := r.findFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, r.root)
	}
	logger.Infow("reading documents", "dir", r.root, "files", len(files))

	docs := make([]*Document, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := r.readFile(path)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *DirectoryReader) findFiles() ([]string, error) {
	info, err := os.Stat(r.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read data dir %s: %w", r.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data path %s is not a directory", r.root)
	}

	var files []string
	err = filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != r.root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := extractors[ext]; !ok {
			logger.Debugw("skipping unsupported file", "path", path)
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", r.root, err)
	}
	sort.Strings(files)
	return files, nil
}

func (r *DirectoryReader) readFile(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	text, err := extractors[ext](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)

	return &Document{
		ID:   hashString(rel),
		Path: path,
		Name: rel,
		Text: text,
		Metadata: map[string]string{
			"file_name":          filepath.Base(path),
			"file_type":          strings.TrimPrefix(ext, "."),
			"file_size":          strconv.FormatInt(info.Size(), 10),
			"last_modified_date": info.ModTime().Format("2006-01-02"),
		},
	}, nil
}

func readPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	content, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var blankLines = regexp.MustCompile(`\n\s*\n+`)

func readHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()

	lines := strings.Split(doc.Text(), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text := blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text), nil
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
