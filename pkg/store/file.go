package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"batchgen/pkg/model"
)

// FileSource 从本地文本文件读取输入
//
//	<Dir>/numbers_<CT>          B001,12
//	<Dir>/todays_crq_dates.txt  123456789,18:00
//	<Dir>/enable.node           NODE1
type FileSource struct {
	Dir            string
	BatchesPattern string // 含一个 %s，替换为 CT
	StartTimesFile string
	NodesFile      string
	logger         *zap.Logger
}

var _ Source = (*FileSource)(nil)

// NewFileSource 创建文件输入源
func NewFileSource(dir, batchesPattern, startTimesFile, nodesFile string, logger *zap.Logger) *FileSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{
		Dir:            dir,
		BatchesPattern: batchesPattern,
		StartTimesFile: startTimesFile,
		NodesFile:      nodesFile,
		logger:         logger.With(zap.String("component", "file-source")),
	}
}

// BatchesPath 返回 CT 对应的批次文件路径
func (f *FileSource) BatchesPath(ct string) string {
	return f.path(fmt.Sprintf(f.BatchesPattern, ct))
}

func (f *FileSource) StartTimesPath() string { return f.path(f.StartTimesFile) }

func (f *FileSource) NodesPath() string { return f.path(f.NodesFile) }

func (f *FileSource) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(f.Dir, name)
}

func (f *FileSource) Batches(ctx context.Context, ct string) ([]model.Batch, error) {
	path := f.BatchesPath(ct)
	var batches []model.Batch
	err := eachLine(path, func(n int, line string) error {
		b, ok := f.parseBatch(path, n, line)
		if ok {
			batches = append(batches, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batches, nil
}

func (f *FileSource) parseBatch(path string, n int, line string) (model.Batch, bool) {
	if strings.TrimSpace(line) == "" {
		return model.Batch{}, false
	}
	fields := strings.Split(line, ",")
	if len(fields) < 2 {
		f.logger.Warn("skip malformed batch line", zap.String("file", path), zap.Int("line", n))
		return model.Batch{}, false
	}
	id := strings.TrimSpace(fields[0])
	hosts, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil || !model.ValidToken(id) {
		f.logger.Warn("skip malformed batch line", zap.String("file", path), zap.Int("line", n))
		return model.Batch{}, false
	}
	if hosts <= 0 {
		return model.Batch{}, false
	}
	return model.Batch{ID: id, Hosts: hosts}, true
}

func (f *FileSource) StartTime(ctx context.Context, ct string) (model.StartTime, error) {
	path := f.StartTimesPath()
	var (
		start model.StartTime
		found bool
	)
	err := eachLine(path, func(n int, line string) error {
		fields := strings.Split(strings.TrimSpace(line), ",")
		if len(fields) < 2 || strings.TrimSpace(fields[0]) != ct {
			return nil
		}
		parsed, err := model.ParseStartTime(fields[1])
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, n, err)
		}
		start, found = parsed, true
		return io.EOF
	})
	if err != nil {
		return model.StartTime{}, err
	}
	if !found {
		return model.StartTime{}, fmt.Errorf("ct %s in %s: %w", ct, path, ErrNotFound)
	}
	return start, nil
}

func (f *FileSource) EnabledNodes(ctx context.Context) ([]model.NodeID, error) {
	path := f.NodesPath()
	var nodes []model.NodeID
	err := eachLine(path, func(_ int, line string) error {
		if id, ok := model.ParseNodeName(line); ok {
			nodes = append(nodes, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoNodes)
	}
	return nodes, nil
}

// eachLine 逐行回调，fn 返回 io.EOF 表示提前结束
func eachLine(path string, fn func(n int, line string) error) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("file '%s': %w", path, ErrNotFound)
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	n := 0
	for scanner.Scan() {
		n++
		if err := fn(n, scanner.Text()); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
