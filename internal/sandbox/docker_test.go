package sandbox

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocker struct {
	hasImage bool
	exitCode int64
	stdout   string
	stderr   string
	startErr error

	pulled  []string
	created []*container.Config
	removed []string
	closed  bool
}

func (f *fakeDocker) ImagePull(_ context.Context, ref string, _ types.ImagePullOptions) (io.ReadCloser, error) {
	f.pulled = append(f.pulled, ref)
	f.hasImage = true
	return io.NopCloser(bytes.NewBufferString(`{"status":"done"}`)), nil
}

func (f *fakeDocker) ContainerCreate(_ context.Context, cfg *container.Config, _ *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, _ string) (container.CreateResponse, error) {
	if !f.hasImage {
		return container.CreateResponse{}, errdefs.NotFound(errors.New("No such image: " + cfg.Image))
	}
	f.created = append(f.created, cfg)
	return container.CreateResponse{ID: "0123456789abcdef"}, nil
}

func (f *fakeDocker) ContainerStart(context.Context, string, types.ContainerStartOptions) error {
	return f.startErr
}

func (f *fakeDocker) ContainerWait(context.Context, string, container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	statusCh := make(chan container.WaitResponse, 1)
	errCh := make(chan error, 1)
	statusCh <- container.WaitResponse{StatusCode: f.exitCode}
	return statusCh, errCh
}

func (f *fakeDocker) ContainerLogs(context.Context, string, types.ContainerLogsOptions) (io.ReadCloser, error) {
	var buf bytes.Buffer
	if f.stdout != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(f.stdout))
	}
	if f.stderr != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(f.stderr))
	}
	return io.NopCloser(&buf), nil
}

func (f *fakeDocker) ContainerRemove(_ context.Context, id string, opts types.ContainerRemoveOptions) error {
	if opts.Force {
		f.removed = append(f.removed, id)
	}
	return nil
}

func (f *fakeDocker) Close() error {
	f.closed = true
	return nil
}

func TestCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("语法正确", func(t *testing.T) {
		fake := &fakeDocker{hasImage: true}
		c := newChecker(fake, "", nil)

		res, err := c.Check(ctx, "#!/bin/bash\nexit 0\n")
		require.NoError(t, err)
		assert.Equal(t, int64(0), res.ExitCode)
		assert.Empty(t, fake.pulled)

		require.Len(t, fake.created, 1)
		cfg := fake.created[0]
		assert.Equal(t, DefaultImage, cfg.Image)
		assert.Equal(t, []string{"bash", "-n", "-c", "#!/bin/bash\nexit 0\n"}, []string(cfg.Cmd))
		assert.True(t, cfg.NetworkDisabled)
		assert.Equal(t, []string{"0123456789abcdef"}, fake.removed)
	})

	t.Run("语法错误", func(t *testing.T) {
		fake := &fakeDocker{hasImage: true, exitCode: 2, stderr: "bash: -c: line 3: syntax error: unexpected end of file\n"}
		c := newChecker(fake, "bash:5.2", nil)

		res, err := c.Check(ctx, "if true; then\n")
		require.ErrorIs(t, err, ErrSyntax)
		require.NotNil(t, res)
		assert.Equal(t, int64(2), res.ExitCode)
		assert.Contains(t, res.Output, "syntax error")
		assert.Len(t, fake.removed, 1)
	})

	t.Run("镜像不存在时先拉取", func(t *testing.T) {
		fake := &fakeDocker{stdout: ""}
		c := newChecker(fake, "bash:5.1", nil)

		_, err := c.Check(ctx, "true")
		require.NoError(t, err)
		assert.Equal(t, []string{"bash:5.1"}, fake.pulled)
		assert.Len(t, fake.created, 1)
	})

	t.Run("启动失败也删除容器", func(t *testing.T) {
		fake := &fakeDocker{hasImage: true, startErr: errors.New("boom")}
		c := newChecker(fake, "", nil)

		_, err := c.Check(ctx, "true")
		require.Error(t, err)
		assert.Len(t, fake.removed, 1)
	})
}

func TestClose(t *testing.T) {
	fake := &fakeDocker{}
	require.NoError(t, newChecker(fake, "", nil).Close())
	assert.True(t, fake.closed)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0123456789ab", shortID("0123456789abcdef"))
	assert.Equal(t, "abc", shortID("abc"))
}
