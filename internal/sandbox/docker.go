package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
)

const (
	// Resource limits for one grading run.
	memoryLimitBytes = 128 * 1024 * 1024 // 128MB
	cpuQuota         = 50000             // 0.5 CPU
	pidsLimit        = 64

	containerUser = "1000"

	// Output beyond this is truncated; graders don't need more.
	maxOutputBytes = 64 * 1024
)

// DockerRunner executes code in a short-lived, resource-limited container
// with no network access. One container per run; nothing is reused.
type DockerRunner struct {
	cli     *client.Client
	image   string
	runtime string // "" = default (runc), "runsc" = gVisor
	timeout time.Duration
}

// NewDockerRunner creates a Docker-backed sandbox runner.
// runtime can be "" for the default Docker runtime or "runsc" for gVisor.
func NewDockerRunner(image, runtime string, timeout time.Duration) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	if runtime != "" {
		slog.Info("Sandbox docker client initialized", "runtime", runtime)
	} else {
		slog.Info("Sandbox docker client initialized", "runtime", "default")
	}
	return &DockerRunner{cli: cli, image: image, runtime: runtime, timeout: timeout}, nil
}

// Run executes source inside a fresh container and captures its output.
func (r *DockerRunner) Run(ctx context.Context, source string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	name := "pycoach-run-" + uuid.NewString()

	config := &container.Config{
		Image: r.image,
		User:  containerUser,
		Cmd:   []string{"python3", "-c", source},
		// No TTY: stdout and stderr stay separate streams.
		Tty:             false,
		NetworkDisabled: true,
	}
	hostConfig := &container.HostConfig{
		Runtime:     r.runtime,
		NetworkMode: "none",
		AutoRemove:  false,
		Resources: container.Resources{
			Memory:    memoryLimitBytes,
			CPUQuota:  cpuQuota,
			PidsLimit: ptr(int64(pidsLimit)),
		},
	}

	resp, err := r.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("%w: create container: %v", ErrUnavailable, err)
	}
	defer r.remove(resp.ID)

	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("%w: start container %s: %v", ErrUnavailable, resp.ID, err)
	}

	waitCh, errCh := r.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("%w: wait for container %s: %v", ErrUnavailable, resp.ID, err)
		}
	case <-waitCh:
	case <-ctx.Done():
		// Timed out: the run counts as a failure, not a backend outage.
		slog.Warn("Sandbox run timed out", "container_id", resp.ID)
		return &Result{Stderr: "execution timed out"}, nil
	}

	return r.collectOutput(ctx, resp.ID)
}

func (r *DockerRunner) collectOutput(ctx context.Context, containerID string) (*Result, error) {
	logs, err := r.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetch logs for %s: %v", ErrUnavailable, containerID, err)
	}
	defer func() {
		if closeErr := logs.Close(); closeErr != nil {
			slog.Debug("Failed to close container logs", "container_id", containerID, "error", closeErr)
		}
	}()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return nil, fmt.Errorf("%w: demux logs for %s: %v", ErrUnavailable, containerID, err)
	}

	return &Result{
		Stdout: truncate(stdout.String()),
		Stderr: truncate(stderr.String()),
	}, nil
}

// remove force-removes the run container. Removal races with Docker's own
// cleanup, so not-found is fine.
func (r *DockerRunner) remove(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		if errdefs.IsNotFound(err) {
			return
		}
		slog.Warn("Failed to remove sandbox container", "container_id", containerID, "error", err)
	}
}

// Ping verifies the Docker daemon is reachable.
func (r *DockerRunner) Ping(ctx context.Context) error {
	if _, err := r.cli.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func truncate(s string) string {
	if len(s) > maxOutputBytes {
		return s[:maxOutputBytes] + "\n... (output truncated)"
	}
	return s
}

func ptr[T any](v T) *T {
	return &v
}
