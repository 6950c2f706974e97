// Package sandbox 在一次性容器里检查生成脚本的语法
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"
)

// DefaultImage 默认检查镜像，需要带 bash
const DefaultImage = "bash:5.2"

// ErrSyntax bash -n 报告语法错误
var ErrSyntax = errors.New("artifact has syntax errors")

// containerAPI Checker 用到的 Docker 客户端方法
type containerAPI interface {
	ImagePull(ctx context.Context, ref string, options types.ImagePullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options types.ContainerStartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options types.ContainerLogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options types.ContainerRemoveOptions) error
	Close() error
}

// Result 一次检查的结果
type Result struct {
	ExitCode int64
	Output   string
}

type Checker struct {
	cli    containerAPI
	image  string
	logger *zap.Logger
}

// NewChecker 从环境变量或默认路径连接本地 Docker
func NewChecker(image string, logger *zap.Logger) (*Checker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("sandbox: docker client: %w", err)
	}
	return newChecker(cli, image, logger), nil
}

func newChecker(cli containerAPI, image string, logger *zap.Logger) *Checker {
	if image == "" {
		image = DefaultImage
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{cli: cli, image: image, logger: logger.With(zap.String("component", "sandbox"))}
}

// Close 释放 Docker 客户端
func (c *Checker) Close() error {
	return c.cli.Close()
}

// Check 用 bash -n 解析脚本但不执行，容器不联网，结束后删除
func (c *Checker) Check(ctx context.Context, script string) (*Result, error) {
	c.logger.Debug("checking artifact", zap.String("image", c.image))

	// 1. 创建容器，本地没有镜像时先拉取
	cfg := &container.Config{
		Image:           c.image,
		Cmd:             []string{"bash", "-n", "-c", script},
		Tty:             false,
		NetworkDisabled: true,
	}
	resp, err := c.cli.ContainerCreate(ctx, cfg, nil, nil, nil, "")
	if client.IsErrNotFound(err) {
		if err := c.pull(ctx); err != nil {
			return nil, err
		}
		resp, err = c.cli.ContainerCreate(ctx, cfg, nil, nil, nil, "")
	}
	if err != nil {
		return nil, fmt.Errorf("sandbox: create container: %w", err)
	}
	containerID := resp.ID
	defer func() {
		if err := c.cli.ContainerRemove(context.Background(), containerID, types.ContainerRemoveOptions{Force: true}); err != nil {
			c.logger.Warn("remove container failed", zap.String("container", shortID(containerID)), zap.Error(err))
		}
	}()

	// 2. 启动
	if err := c.cli.ContainerStart(ctx, containerID, types.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("sandbox: start container: %w", err)
	}

	// 3. 等待结束
	var exitCode int64
	statusCh, errCh := c.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("sandbox: wait container: %w", err)
		}
	case status := <-statusCh:
		exitCode = status.StatusCode
	}

	// 4. 读取日志，拆分 docker 的多路复用流
	outReader, err := c.cli.ContainerLogs(ctx, containerID, types.ContainerLogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, fmt.Errorf("sandbox: container logs: %w", err)
	}
	defer outReader.Close()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, outReader); err != nil {
		return nil, fmt.Errorf("sandbox: read logs: %w", err)
	}

	result := &Result{ExitCode: exitCode, Output: buf.String()}
	if exitCode != 0 {
		return result, fmt.Errorf("%w (exit %d): %s", ErrSyntax, exitCode, result.Output)
	}
	c.logger.Debug("artifact passed", zap.String("container", shortID(containerID)))
	return result, nil
}

func (c *Checker) pull(ctx context.Context) error {
	c.logger.Info("pulling image", zap.String("image", c.image))
	reader, err := c.cli.ImagePull(ctx, c.image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("sandbox: pull %s: %w", c.image, err)
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("sandbox: pull %s: %w", c.image, err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
