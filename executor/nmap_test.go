package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/autonmap/scan-orchestrator/entity"
)

func ports(s string) *string {
	return &s
}

// writeFakeEngine drops an executable shell script standing in for nmap.
func writeFakeEngine(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-nmap")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func newTestExecutor(t *testing.T, enginePath string, timeout time.Duration) *NmapExecutor {
	t.Helper()
	return &NmapExecutor{
		NmapPath:        enginePath,
		ProxychainsPath: "proxychains",
		Timeout:         timeout,
		TempDir:         t.TempDir(),
	}
}

func TestBuildCommand(t *testing.T) {
	t.Parallel()
	e := &NmapExecutor{NmapPath: "/usr/bin/nmap", ProxychainsPath: "proxychains"}

	tests := []struct {
		name    string
		profile string
		targets []string
		ports   *string
		timing  string
		want    []string
	}{
		{
			name:    "basic version detection",
			profile: entity.ProfileBasicVersionDetection,
			targets: []string{"192.0.2.10"},
			timing:  "T3",
			want:    []string{"/usr/bin/nmap", "-sV", "-Pn", "-oX", "/tmp/out.xml", "-T3", "-vv", "192.0.2.10"},
		},
		{
			name:    "ports filter appended before targets",
			profile: entity.ProfileAggressiveScan,
			targets: []string{"192.0.2.10", "192.0.2.11"},
			ports:   ports("80,443"),
			timing:  "T4",
			want:    []string{"/usr/bin/nmap", "-A", "-Pn", "-oX", "/tmp/out.xml", "-T4", "-vv", "-p", "80,443", "192.0.2.10", "192.0.2.11"},
		},
		{
			name:    "evasive profile keeps fragmentation flags",
			profile: entity.ProfileVulnTCPEvasive,
			targets: []string{"198.51.100.1"},
			timing:  "T2",
			want:    []string{"/usr/bin/nmap", "-n", "-A", "-Pn", "-sT", "-sC", "--script=vuln", "-f", "--mtu", "24", "-oX", "/tmp/out.xml", "-T2", "-vv", "198.51.100.1"},
		},
		{
			name:    "proxy profile wraps engine in proxychains",
			profile: entity.ProfileProxyVulnScan,
			targets: []string{"203.0.113.9"},
			timing:  "T3",
			want:    []string{"proxychains", "-q", "nmap", "-A", "-Pn", "-sT", "--script=vuln", "-oX", "/tmp/out.xml", "-T3", "-vv", "203.0.113.9"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.BuildCommand(tc.profile, tc.targets, tc.ports, tc.timing, "/tmp/out.xml")
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestBuildCommandUnknownProfile(t *testing.T) {
	t.Parallel()
	e := &NmapExecutor{NmapPath: "/usr/bin/nmap"}
	_, err := e.BuildCommand("no_such_profile", []string{"192.0.2.10"}, nil, "T3", "/tmp/out.xml")
	require.ErrorIs(t, err, ErrUnknownProfile)
}

func TestRunCapturesReportRegardlessOfExitCode(t *testing.T) {
	t.Parallel()
	// Writes a report to the -oX path and exits non-zero.
	engine := writeFakeEngine(t, `
for arg in "$@"; do
  if [ "$prev" = "-oX" ]; then xml="$arg"; fi
  prev="$arg"
done
printf '<nmaprun><host>up</host></nmaprun>' > "$xml"
exit 1
`)
	e := newTestExecutor(t, engine, 10*time.Second)

	report, exitCode, err := e.Run(context.Background(), uuid.New(), entity.ProfileBasicVersionDetection, []string{"192.0.2.10"}, nil, "T3")
	require.NoError(t, err)
	require.Equal(t, 1, exitCode)
	require.Contains(t, string(report), "<nmaprun>")

	requireNoArtifacts(t, e.TempDir)
}

func TestRunEmptyOutputIsFailure(t *testing.T) {
	t.Parallel()
	engine := writeFakeEngine(t, "exit 0")
	e := newTestExecutor(t, engine, 10*time.Second)

	_, _, err := e.Run(context.Background(), uuid.New(), entity.ProfileBasicVersionDetection, []string{"192.0.2.10"}, nil, "T3")
	require.ErrorIs(t, err, ErrEmptyOutput)

	requireNoArtifacts(t, e.TempDir)
}

func TestRunTimeoutKillsEngineAndCleansUp(t *testing.T) {
	t.Parallel()
	engine := writeFakeEngine(t, "sleep 30")
	e := newTestExecutor(t, engine, 100*time.Millisecond)

	start := time.Now()
	_, _, err := e.Run(context.Background(), uuid.New(), entity.ProfileBasicVersionDetection, []string{"192.0.2.10"}, nil, "T3")
	require.ErrorIs(t, err, ErrScanTimeout)
	require.Less(t, time.Since(start), 10*time.Second)

	requireNoArtifacts(t, e.TempDir)
}

func TestRunMissingEngine(t *testing.T) {
	t.Parallel()
	e := newTestExecutor(t, filepath.Join(t.TempDir(), "does-not-exist"), 10*time.Second)

	_, _, err := e.Run(context.Background(), uuid.New(), entity.ProfileBasicVersionDetection, []string{"192.0.2.10"}, nil, "T3")
	require.ErrorIs(t, err, ErrEngineMissing)

	requireNoArtifacts(t, e.TempDir)
}

func requireNoArtifacts(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "temporary scan artifacts were leaked")
}
