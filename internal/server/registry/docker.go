package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/dmitrijs2005/versiman/internal/logging"
)

// DockerCLI talks to the container runtime through the docker binary. It
// keeps the server free of a daemon SDK: every operation maps to one CLI
// invocation and the context bounds it.
type DockerCLI struct {
	binary string
	logger logging.Logger
}

func NewDockerCLI(logger logging.Logger) *DockerCLI {
	return &DockerCLI{binary: "docker", logger: logger.With("module", "docker_registry")}
}

func (d *DockerCLI) Pull(ctx context.Context, tag string) error {
	out, err := d.run(ctx, "pull", tag)
	if err != nil {
		if isNotFoundOutput(out) {
			return fmt.Errorf("%w: %s", ErrImageNotFound, tag)
		}
		return err
	}
	return nil
}

func (d *DockerCLI) Exists(ctx context.Context, tag string) (bool, error) {
	out, err := d.run(ctx, "image", "inspect", "--format", "{{.Id}}", tag)
	if err != nil {
		if isNotFoundOutput(out) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Export shells out to docker save. The command's stdout is handed to the
// caller as a stream; closing it reaps the process.
func (d *DockerCLI) Export(ctx context.Context, tag string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, d.binary, "save", tag)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("docker save %s: %w", tag, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("docker save %s: %w", tag, err)
	}

	return &cmdStream{ReadCloser: stdout, cmd: cmd, stderr: &stderr, tag: tag}, nil
}

func (d *DockerCLI) Remove(ctx context.Context, tag string) error {
	out, err := d.run(ctx, "rmi", tag)
	if err != nil {
		if isNotFoundOutput(out) {
			return fmt.Errorf("%w: %s", ErrImageNotFound, tag)
		}
		return err
	}
	return nil
}

func (d *DockerCLI) Load(ctx context.Context, r io.Reader) error {
	cmd := exec.CommandContext(ctx, d.binary, "load")
	cmd.Stdin = r

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker load: %w: %s", err, strings.TrimSpace(string(out)))
	}
	d.logger.Info(ctx, "image archive loaded", "output", strings.TrimSpace(string(out)))
	return nil
}

func (d *DockerCLI) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, d.binary, args...)

	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))
	if err != nil {
		return text, fmt.Errorf("docker %s: %w: %s", args[0], err, text)
	}
	return text, nil
}

// docker reports missing images with different phrasings depending on the
// subcommand and version.
func isNotFoundOutput(out string) bool {
	lower := strings.ToLower(out)
	return strings.Contains(lower, "no such image") ||
		strings.Contains(lower, "not found") ||
		strings.Contains(lower, "manifest unknown") ||
		strings.Contains(lower, "repository does not exist")
}

// cmdStream couples the save output pipe with the process lifetime.
type cmdStream struct {
	io.ReadCloser
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	tag    string
}

func (s *cmdStream) Close() error {
	closeErr := s.ReadCloser.Close()
	if err := s.cmd.Wait(); err != nil {
		msg := strings.TrimSpace(s.stderr.String())
		if isNotFoundOutput(msg) {
			return fmt.Errorf("%w: %s", ErrImageNotFound, s.tag)
		}
		return fmt.Errorf("docker save %s: %w: %s", s.tag, err, msg)
	}
	return closeErr
}
