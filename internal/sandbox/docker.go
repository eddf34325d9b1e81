package sandbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	defaultImage     = "gcc-time:13"
	defaultPidsLimit = 256

	// extra wall-clock allowance on top of the run time limit to cover
	// compilation before the hard cap kicks in
	defaultCompileBuffer = 10 * time.Second

	// how long to wait for the drain readers after the process exited
	defaultDrainTimeout = time.Second
)

// DockerRunner compiles and runs C++17 source inside a throwaway docker
// container: no network, read-only rootfs and mounts, a size-capped tmpfs
// scratch area, a pids limit and a hard memory ceiling. The user program
// is wrapped with /usr/bin/time so usage telemetry lands in stderr, and
// with coreutils timeout so in-sandbox overruns exit with 124.
type DockerRunner struct {
	image         string
	pidsLimit     int
	compileBuffer time.Duration
	drainTimeout  time.Duration
	log           *slog.Logger
}

func NewDockerRunner(log *slog.Logger) *DockerRunner {
	return &DockerRunner{
		image:         defaultImage,
		pidsLimit:     defaultPidsLimit,
		compileBuffer: defaultCompileBuffer,
		drainTimeout:  defaultDrainTimeout,
		log:           log,
	}
}

// Run implements Runner. Process-level failures never escape as errors:
// a hard-cap overrun yields exit 124 with -1/-1 telemetry, and stream
// read failures degrade to empty output.
func (r *DockerRunner) Run(ctx context.Context, req ExecutionRequest) (ExecutionResult, error) {
	work, err := os.MkdirTemp("", "judge-job-")
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to create sandbox dir: %w", err)
	}
	defer os.RemoveAll(work)

	srcDir := filepath.Join(work, "src")
	binDir := filepath.Join(work, "bin")
	for _, dir := range []string{srcDir, binDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return ExecutionResult{}, fmt.Errorf("failed to create sandbox dir: %w", err)
		}
	}
	if err := os.WriteFile(filepath.Join(srcDir, "main.cpp"), []byte(req.Code), 0644); err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to write source: %w", err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "input.txt"), []byte(req.Stdin), 0644); err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to write input: %w", err)
	}

	name := "judge-job-" + uuid.NewString()
	cmd := exec.Command("docker", r.buildArgs(name, srcDir, binDir, req)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to open stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to start sandbox process: %w", err)
	}

	// Independent drain readers so neither stream can deadlock the child.
	outCh := drain(stdout)
	errCh := drain(stderr)

	// Wait on the process directly; stream joins happen afterwards with a
	// bounded timeout.
	waitCh := make(chan *os.ProcessState, 1)
	go func() {
		state, _ := cmd.Process.Wait()
		waitCh <- state
	}()

	hardCap := time.Duration(req.TimeLimitMs)*time.Millisecond + r.compileBuffer
	timer := time.NewTimer(hardCap)
	defer timer.Stop()

	var state *os.ProcessState
	select {
	case state = <-waitCh:
	case <-timer.C:
	case <-ctx.Done():
	}

	if state == nil {
		// Hard cap exceeded (or caller gave up): kill the process tree and
		// reclaim the container, then salvage whatever stdout arrived.
		_ = cmd.Process.Kill()
		r.removeContainer(name)
		out := awaitDrain(outCh, 200*time.Millisecond)
		select {
		case <-waitCh:
		case <-time.After(r.drainTimeout):
		}
		return ExecutionResult{
			ExitCode:   ExitTimeout,
			Stdout:     out,
			Stderr:     "sandbox timed out (hard cap)",
			TimeMillis: -1,
			MemoryKB:   -1,
		}, nil
	}

	out := awaitDrain(outCh, r.drainTimeout)
	diag := awaitDrain(errCh, r.drainTimeout)

	timeMs, memKB, clean := ParseUsage(diag)
	return ExecutionResult{
		ExitCode:   state.ExitCode(),
		Stdout:     out,
		Stderr:     clean,
		TimeMillis: timeMs,
		MemoryKB:   memKB,
	}, nil
}

// buildArgs assembles the docker invocation: the source and input are
// mounted read-only, the compiled binary lands on a writable mount, and
// the run line redirects stdin from the mounted input file.
func (r *DockerRunner) buildArgs(name, srcDir, binDir string, req ExecutionRequest) []string {
	timeLimitSec := (req.TimeLimitMs + 999) / 1000
	memoryMB := (req.MemoryLimitKB + 1023) / 1024
	cpus := req.CPUCores
	if cpus <= 0 {
		cpus = 1.0
	}

	runLine := fmt.Sprintf(
		"g++ -O2 -std=c++17 /work/main.cpp -o /out/main && "+
			"/usr/bin/time -f 'TIME_USED_MS=%%e\\nMEM_USED_KB=%%M' timeout %ds /out/main < /work/input.txt",
		timeLimitSec,
	)

	return []string{
		"run", "--rm",
		"--name", name,
		"--network", "none",
		fmt.Sprintf("--cpus=%g", cpus),
		"-m", fmt.Sprintf("%dm", memoryMB),
		"--pids-limit", fmt.Sprintf("%d", r.pidsLimit),
		"--read-only",
		"-v", srcDir + ":/work:ro",
		"-v", binDir + ":/out:rw",
		"--tmpfs", "/tmp:rw,noexec,nosuid,size=64m",
		r.image,
		"bash", "-lc", runLine,
	}
}

// removeContainer force-removes the container backing a timed-out run.
// Best effort: the run result is already decided at this point.
func (r *DockerRunner) removeContainer(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, "docker", "rm", "-f", name).Run(); err != nil {
		r.log.Warn("failed to remove sandbox container", "container", name, "error", err)
	}
}

// drain reads a stream to EOF on its own goroutine. Read errors degrade
// to whatever was read so far; the runner must always produce a result.
func drain(rd io.Reader) <-chan string {
	ch := make(chan string, 1)
	go func() {
		b, _ := io.ReadAll(rd)
		ch <- string(b)
	}()
	return ch
}

func awaitDrain(ch <-chan string, timeout time.Duration) string {
	select {
	case s := <-ch:
		return s
	case <-time.After(timeout):
		return ""
	}
}
