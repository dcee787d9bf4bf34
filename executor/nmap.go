package executor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/autonmap/scan-orchestrator/config"
	"github.com/autonmap/scan-orchestrator/entity"
)

var (
	// ErrEngineMissing signals a fatal environment defect: the scan engine
	// binary is absent. Callers must treat it as distinct from a target-side
	// failure and log it loudly.
	ErrEngineMissing = errors.New("scan engine binary not found")

	// ErrScanTimeout is returned when the engine exceeds the wall-clock
	// ceiling. The process is killed and no artifacts are left behind.
	ErrScanTimeout = errors.New("scan exceeded wall-clock timeout")

	ErrUnknownProfile = errors.New("unknown scan profile")
	ErrEmptyOutput    = errors.New("scan produced no XML output")
)

// NmapExecutor invokes the external nmap engine as a bounded, timed,
// cancellable operation. A non-zero engine exit code is reported as data,
// not as an executor failure; the worker decides what it means.
type NmapExecutor struct {
	NmapPath        string
	ProxychainsPath string
	Timeout         time.Duration
	TempDir         string
}

func NewNmapExecutor(cfg *config.EnvConfig) *NmapExecutor {
	return &NmapExecutor{
		NmapPath:        cfg.Scanner.NmapPath,
		ProxychainsPath: cfg.Scanner.ProxychainsPath,
		Timeout:         cfg.Scanner.Timeout,
		TempDir:         os.TempDir(),
	}
}

// BuildCommand translates a profile and its parameters into the concrete
// argv. The proxy profile wraps the engine in proxychains and must resolve
// nmap through PATH so proxychains can interpose on it.
func (e *NmapExecutor) BuildCommand(profile string, targets []string, ports *string, timing string, xmlPath string) ([]string, error) {
	args, ok := profileArgs[profile]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, profile)
	}

	var command []string
	if profile == entity.ProfileProxyVulnScan {
		command = append(command, e.ProxychainsPath, "-q", "nmap")
	} else {
		command = append(command, e.NmapPath)
	}
	command = append(command, args...)
	command = append(command, "-oX", xmlPath)
	command = append(command, "-"+timing, "-vv")
	if ports != nil && *ports != "" {
		command = append(command, "-p", *ports)
	}
	command = append(command, targets...)

	return command, nil
}

// Run executes one scan. All temporary artifacts (XML report, captured
// stdout, captured stderr) are scoped to the call and removed on every exit
// path, including timeout and start failure.
func (e *NmapExecutor) Run(ctx context.Context, scanID uuid.UUID, profile string, targets []string, ports *string, timing string) ([]byte, int, error) {
	xmlFile, err := os.CreateTemp(e.TempDir, fmt.Sprintf("nmap_%s_*.xml", scanID))
	if err != nil {
		return nil, 0, fmt.Errorf("allocating scan artifact: %w", err)
	}
	xmlPath := xmlFile.Name()
	_ = xmlFile.Close()
	stdoutPath := xmlPath + ".out"
	stderrPath := xmlPath + ".err"

	defer func() {
		for _, p := range []string{xmlPath, stdoutPath, stderrPath} {
			_ = os.Remove(p)
		}
	}()

	argv, err := e.BuildCommand(profile, targets, ports, timing, xmlPath)
	if err != nil {
		return nil, 0, err
	}

	runCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)

	stdoutFile, err := os.Create(stdoutPath)
	if err != nil {
		return nil, 0, fmt.Errorf("allocating stdout artifact: %w", err)
	}
	stderrFile, err := os.Create(stderrPath)
	if err != nil {
		_ = stdoutFile.Close()
		return nil, 0, fmt.Errorf("allocating stderr artifact: %w", err)
	}
	cmd.Stdout = stdoutFile
	cmd.Stderr = stderrFile

	runErr := cmd.Run()
	_ = stdoutFile.Close()
	_ = stderrFile.Close()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, 0, ErrScanTimeout
	}

	exitCode := 0
	if runErr != nil {
		if errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, fs.ErrNotExist) {
			return nil, 0, ErrEngineMissing
		}
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, 0, fmt.Errorf("running scan engine: %w", runErr)
		}
		// Engine ran but exited non-zero. Interpretation is the worker's job.
		exitCode = exitErr.ExitCode()
	}

	xmlBytes, err := os.ReadFile(xmlPath)
	if err != nil {
		return nil, exitCode, ErrEmptyOutput
	}
	if len(xmlBytes) == 0 {
		return nil, exitCode, ErrEmptyOutput
	}

	return xmlBytes, exitCode, nil
}
