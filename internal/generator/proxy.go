package generator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Proxy startup polling: litellm needs a while to import its world and bind.
const (
	proxyStartPollAttempts = 20
	proxyStartPollDelay    = 2 * time.Second
	proxyStopGrace         = 5 * time.Second
)

// ProxyProcess manages a litellm proxy spawned by this process. It only ever
// tracks the child it started itself; an already-running external proxy is
// detected and left alone.
type ProxyProcess struct {
	baseURL    string
	configPath string
	log        *slog.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	external bool
	done     chan struct{}
	waitErr  error
}

// NewProxyProcess prepares a manager for a proxy at baseURL driven by the
// litellm config at configPath. Nothing is started until Start.
func NewProxyProcess(baseURL, configPath string, log *slog.Logger) *ProxyProcess {
	return &ProxyProcess{
		baseURL:    strings.TrimRight(baseURL, "/"),
		configPath: configPath,
		log:        log.With("component", "proxy"),
	}
}

// Start launches the proxy unless one is already answering on baseURL. It
// blocks until the proxy reports healthy or the startup budget is exhausted.
func (p *ProxyProcess) Start(ctx context.Context) error {
	if p.endpointHealthy(ctx) {
		p.log.Info("proxy already running, reusing it", "base_url", p.baseURL)
		p.mu.Lock()
		p.external = true
		p.mu.Unlock()
		return nil
	}

	cfgPath, err := filepath.Abs(p.configPath)
	if err != nil {
		return fmt.Errorf("proxy: resolve config path: %w", err)
	}
	if _, err := os.Stat(cfgPath); err != nil {
		return fmt.Errorf("proxy: config file %s: %w", cfgPath, err)
	}

	port, err := portOf(p.baseURL)
	if err != nil {
		return fmt.Errorf("proxy: %w", err)
	}

	cmd := exec.Command("litellm", "--config", cfgPath, "--port", port)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("proxy: start litellm: %w", err)
	}

	done := make(chan struct{})
	p.mu.Lock()
	p.cmd = cmd
	p.external = false
	p.done = done
	p.mu.Unlock()

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.waitErr = err
		p.mu.Unlock()
		close(done)
	}()

	p.log.Info("litellm proxy starting", "pid", cmd.Process.Pid, "config", cfgPath, "port", port)

	for attempt := 1; attempt <= proxyStartPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			p.Stop()
			return fmt.Errorf("proxy: startup cancelled: %w", ctx.Err())
		case <-done:
			return fmt.Errorf("proxy: litellm exited during startup: %w", p.exitError())
		case <-time.After(proxyStartPollDelay):
		}
		if p.endpointHealthy(ctx) {
			p.log.Info("litellm proxy ready", "attempts", attempt)
			return nil
		}
	}

	p.Stop()
	return fmt.Errorf("proxy: litellm did not become healthy within %s",
		time.Duration(proxyStartPollAttempts)*proxyStartPollDelay)
}

// Alive reports whether the proxy is usable: an external proxy is assumed
// alive (its endpoint is probed separately), a managed child must not have
// exited.
func (p *ProxyProcess) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.external {
		return true
	}
	if p.cmd == nil || p.cmd.Process == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Stop terminates a managed child: SIGTERM first, SIGKILL after a grace
// period. External proxies are never touched.
func (p *ProxyProcess) Stop() {
	p.mu.Lock()
	cmd := p.cmd
	external := p.external
	done := p.done
	p.mu.Unlock()

	if external || cmd == nil || cmd.Process == nil {
		return
	}
	select {
	case <-done:
		return
	default:
	}

	p.log.Info("stopping litellm proxy", "pid", cmd.Process.Pid)
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return
	}

	select {
	case <-done:
	case <-time.After(proxyStopGrace):
		p.log.Warn("litellm proxy did not exit, killing it", "pid", cmd.Process.Pid)
		_ = cmd.Process.Kill()
		<-done
	}
}

func (p *ProxyProcess) exitError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.waitErr != nil {
		return p.waitErr
	}
	return fmt.Errorf("exited with status 0")
}

// endpointHealthy does a single quick probe of {base}/health.
func (p *ProxyProcess) endpointHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// portOf extracts the port from a base URL, defaulting by scheme.
func portOf(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL %q: %w", baseURL, err)
	}
	if port := u.Port(); port != "" {
		return port, nil
	}
	if u.Scheme == "https" {
		return "443", nil
	}
	return "80", nil
}
