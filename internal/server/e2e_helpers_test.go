//go:build !ci

package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
)

// Browser tests drive chromedp/headless-shell in Docker and skip when
// Docker is unavailable.
const headlessImage = "chromedp/headless-shell:stable"

// newBrowser starts a headless Chrome container and returns a chromedp
// context bounded by timeout. The container is removed on test cleanup.
func newBrowser(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	if err := exec.Command("docker", "version").Run(); err != nil {
		t.Skip("Docker not available, skipping browser test")
	}

	port, err := freePort()
	if err != nil {
		t.Fatalf("free port: %v", err)
	}
	name := fmt.Sprintf("chrome-e2e-qmdtutor-%d", port)
	removeContainer(name)

	if err := exec.Command("docker", "image", "inspect", headlessImage).Run(); err != nil {
		t.Logf("Pulling %s...", headlessImage)
		pullCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		out, err := exec.CommandContext(pullCtx, "docker", "pull", headlessImage).CombinedOutput()
		cancel()
		if err != nil {
			t.Fatalf("docker pull: %v\n%s", err, out)
		}
	}

	// --network host does not publish ports on Docker Desktop, so map the
	// container's default debugging port there instead.
	args := []string{"run", "-d", "--rm", "--memory", "512m", "--name", name}
	if runtime.GOOS == "linux" {
		args = append(args, "--network", "host", headlessImage, fmt.Sprintf("--remote-debugging-port=%d", port))
	} else {
		args = append(args, "-p", fmt.Sprintf("%d:9222", port), headlessImage)
	}
	if out, err := exec.Command("docker", args...).CombinedOutput(); err != nil {
		t.Fatalf("docker run: %v\n%s", err, out)
	}
	t.Cleanup(func() { removeContainer(name) })

	chromeURL := fmt.Sprintf("http://localhost:%d", port)
	if err := waitForChrome(chromeURL+"/json/version", 60*time.Second); err != nil {
		if logs, lerr := exec.Command("docker", "logs", "--tail", "50", name).CombinedOutput(); lerr == nil {
			t.Logf("container logs:\n%s", logs)
		}
		t.Fatalf("Chrome not ready: %v", err)
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), chromeURL)
	ctx, ctxCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(t.Logf))
	ctx, timeoutCancel := context.WithTimeout(ctx, timeout)
	t.Cleanup(func() {
		timeoutCancel()
		ctxCancel()
		allocCancel()
	})
	return ctx
}

func waitForChrome(url string, within time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(within)
	var lastErr error
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			return nil
		}
		lastErr = err
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func removeContainer(name string) {
	_ = exec.Command("docker", "rm", "-f", name).Run()
}

// browserURL rewrites an httptest URL so the containerized browser can
// reach it: localhost on Linux host networking, host.docker.internal
// elsewhere.
func browserURL(u string) string {
	host := "localhost"
	if runtime.GOOS != "linux" {
		host = "host.docker.internal"
	}
	return strings.NewReplacer("127.0.0.1", host, "[::1]", host).Replace(u)
}
