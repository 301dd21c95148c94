//go:build integration

package integration

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"testing"
	"time"
)

// isCI returns true if running in a CI environment.
func isCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "CIRCLECI", "TRAVIS", "JENKINS_URL"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

// liveTarget holds the tenant used by live tests. The values are captured
// before isolateHome clears them.
type liveTarget struct {
	URL string
	Key string
}

// skipIfNoTenant skips the test unless SINGLEBASE_API_URL and
// SINGLEBASE_API_KEY are set. In CI it fails unless SINGLEBASE_SKIP_INTEGRATION
// is set.
func skipIfNoTenant(t *testing.T) liveTarget {
	t.Helper()
	target := liveTarget{URL: os.Getenv("SINGLEBASE_API_URL"), Key: os.Getenv("SINGLEBASE_API_KEY")}
	if target.URL != "" && target.Key != "" {
		return target
	}
	if isCI() && os.Getenv("SINGLEBASE_SKIP_INTEGRATION") == "" {
		t.Fatal("SINGLEBASE_API_URL and SINGLEBASE_API_KEY not set (CI environment detected; set SINGLEBASE_SKIP_INTEGRATION=1 to skip)")
	}
	t.Skip("SINGLEBASE_API_URL and SINGLEBASE_API_KEY not set")
	return liveTarget{}
}

// testCollection returns the collection live tests write to.
func testCollection() string {
	if c := os.Getenv("SINGLEBASE_TEST_COLLECTION"); c != "" {
		return c
	}
	return "integration_test"
}

// isolateHome points HOME at a temp directory so the CLI reads and writes
// its own config and keystore, and clears inherited SINGLEBASE_ variables.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("SINGLEBASE_KEYSTORE_PASSPHRASE", "integration-passphrase")
	for _, name := range []string{"PROFILE", "API_URL", "API_KEY", "TIMEOUT"} {
		t.Setenv("SINGLEBASE_"+name, "")
	}
	return home
}

// cliResult holds the result of running a CLI command.
type cliResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// runCLI executes the singlebase CLI with the given arguments.
// It uses the pre-built binary from TestMain.
func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	return runCLIWithStdin(t, "", args...)
}

// runCLIWithStdin executes the singlebase CLI with stdin input.
func runCLIWithStdin(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()

	binaryPath := getCliBinary()
	if binaryPath == "" {
		t.Fatal("CLI binary not built - TestMain may not have run")
	}

	cmd := exec.Command(binaryPath, args...)
	cmd.Stdin = bytes.NewBufferString(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			t.Fatalf("Failed to run CLI: %v", err)
		}
	}

	return cliResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}
}

// freeAddr returns a loopback address that was free a moment ago.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// startDevServer runs `singlebase devserver` in the background and waits
// until it accepts requests. It returns the server URL.
func startDevServer(t *testing.T, apiKey string, extraArgs ...string) string {
	t.Helper()

	addr := freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	args := append([]string{"devserver", "--addr", addr, "--api-key", apiKey}, extraArgs...)
	cmd := exec.CommandContext(ctx, getCliBinary(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		cancel()
		t.Fatalf("start devserver: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = cmd.Wait()
	})

	url := "http://" + addr
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Post(url, "application/json", bytes.NewBufferString(`{}`))
		if err == nil {
			resp.Body.Close()
			return url
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("devserver did not start on %s\n%s", addr, stderr.String())
	return ""
}

// uniqueName returns a name unlikely to collide across runs.
func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
