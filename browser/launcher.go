package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"myhome-publisher/utils"
)

// devToolsMarker is what Chrome prints on stderr once the debugging port accepts connections.
const devToolsMarker = "DevTools listening"

// VersionInfo is the subset of /json/version the session manager needs.
type VersionInfo struct {
	Browser              string `json:"Browser"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// FetchVersion asks a running browser for its debugger endpoint. Any
// failure, including a refused connection, means no browser is listening.
func FetchVersion(ctx context.Context, versionURL string) (*VersionInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, versionURL, nil)
	if err != nil {
		return nil, fmt.Errorf("devtools: build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("devtools: %s unreachable: %w", versionURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("devtools: %s answered %s", versionURL, resp.Status)
	}

	var info VersionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("devtools: decode version: %w", err)
	}
	if info.WebSocketDebuggerURL == "" {
		return nil, fmt.Errorf("devtools: version answer has no webSocketDebuggerUrl")
	}
	return &info, nil
}

// Launcher starts a detached Chrome with remote debugging enabled. The
// process outlives this program so later runs can attach to it.
type Launcher struct {
	ChromePath     string
	Port           int
	UserDataDir    string
	WindowWidth    int
	WindowHeight   int
	StartupTimeout time.Duration
	Logger         *utils.Logger

	// Pid is set once Start has spawned the browser.
	Pid int
}

// Args returns the command line used for the debugging browser.
func (l *Launcher) Args() []string {
	args := []string{
		"--remote-debugging-port=" + strconv.Itoa(l.Port),
		fmt.Sprintf("--window-size=%d,%d", l.WindowWidth, l.WindowHeight),
		"--incognito",
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-background-networking",
		"--disable-popup-blocking",
		"--disable-sync",
		"--password-store=basic",
		"--use-mock-keychain",
	}
	if l.UserDataDir != "" {
		args = append(args, "--user-data-dir="+l.UserDataDir)
	}
	return append(args, "about:blank")
}

// Start launches Chrome and returns once it reports that DevTools is listening.
func (l *Launcher) Start(ctx context.Context) error {
	path := l.ChromePath
	if path == "" {
		path = FindChromeBinary()
	}
	if path == "" {
		return fmt.Errorf("launcher: no Chrome binary found, set CHROME_PATH")
	}

	// stderr goes to a file rather than a pipe so the browser keeps running
	// after this process exits.
	logFile, err := os.CreateTemp("", "chrome-devtools-*.log")
	if err != nil {
		return fmt.Errorf("launcher: create log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	cmd := exec.Command(path, l.Args()...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	detach(cmd)
	if err := cmd.Start(); err != nil {
		_ = os.Remove(logFile.Name())
		return fmt.Errorf("launcher: start %s: %w", path, err)
	}
	l.Pid = cmd.Process.Pid
	if l.Logger != nil {
		l.Logger.Info("[browser] Launched %s (pid %d) on debugging port %d, output in %s",
			path, cmd.Process.Pid, l.Port, logFile.Name())
	}

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	timeout := l.StartupTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := waitForMarker(waitCtx, logFile.Name(), devToolsMarker, exited); err != nil {
		return fmt.Errorf("launcher: %w (browser output in %s)", err, logFile.Name())
	}

	// The browser keeps its descriptor; on unix it writes on into the
	// unlinked file, so nothing is left behind in the temp directory.
	if err := os.Remove(logFile.Name()); err != nil && l.Logger != nil {
		l.Logger.Debug("[browser] Keeping %s: %v", logFile.Name(), err)
	}
	return nil
}

// waitForMarker polls the log file until marker appears, the process exits
// or ctx is done.
func waitForMarker(ctx context.Context, logPath, marker string, exited <-chan error) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		data, err := os.ReadFile(logPath)
		if err == nil && strings.Contains(string(data), marker) {
			return nil
		}

		select {
		case err := <-exited:
			return fmt.Errorf("browser exited before %q appeared: %v", marker, err)
		case <-ctx.Done():
			return fmt.Errorf("%w: waiting for %q", ErrTimeout, marker)
		case <-ticker.C:
		}
	}
}

// FindChromeBinary locates Chrome/Chromium binary.
func FindChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
