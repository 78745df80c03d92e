// Package diag runs self-test checks against the agent's own
// configuration: signaling server reachability, data directory health,
// shell availability, and proxied service reachability. It never starts
// the agent itself.
package diag

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"time"

	"github.com/adi-family/cocoon/internal/config"
)

// Check is one self-test result.
type Check struct {
	Name   string
	OK     bool
	Detail string
}

// Report is the full set of checks from one doctor run.
type Report struct {
	Checks []Check
}

func Run(cfg *config.Config) Report {
	var r Report
	r.Checks = append(r.Checks, checkSignalingServer(cfg.SignalingURL))
	r.Checks = append(r.Checks, checkDataDir(cfg.DataDir))
	r.Checks = append(r.Checks, checkShell())
	for name, port := range cfg.Services {
		r.Checks = append(r.Checks, checkProxiedService(name, port))
	}
	return r
}

func checkSignalingServer(signalingURL string) Check {
	healthURL, err := toHealthURL(signalingURL)
	if err != nil {
		return Check{Name: "signaling server", OK: false, Detail: err.Error()}
	}
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(healthURL)
	if err != nil {
		return Check{Name: "signaling server", OK: false, Detail: "not reachable at " + healthURL}
	}
	defer resp.Body.Close()
	return Check{Name: "signaling server", OK: resp.StatusCode < 500, Detail: "reachable at " + healthURL}
}

// toHealthURL derives an http(s) health-check URL from the ws(s)://
// signaling URL configured for the actual agent connection.
func toHealthURL(signalingURL string) (string, error) {
	u, err := url.Parse(signalingURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = "/health"
	u.RawQuery = ""
	return u.String(), nil
}

func checkDataDir(dir string) Check {
	if _, err := config.EnsureDataDir(dir); err != nil {
		return Check{Name: "data dir", OK: false, Detail: err.Error()}
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return Check{Name: "data dir", OK: false, Detail: "not writable: " + err.Error()}
	}
	probe.Close()
	os.Remove(probe.Name())
	return Check{Name: "data dir", OK: true, Detail: dir}
}

func checkShell() Check {
	path, err := exec.LookPath("sh")
	if err != nil {
		return Check{Name: "shell", OK: false, Detail: "sh not found on PATH"}
	}
	return Check{Name: "shell", OK: true, Detail: path}
}

func checkProxiedService(name string, port int) Check {
	target := fmt.Sprintf("http://127.0.0.1:%d/", port)
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(target)
	if err != nil {
		return Check{Name: "service:" + name, OK: false, Detail: "not reachable at " + target}
	}
	defer resp.Body.Close()
	return Check{Name: "service:" + name, OK: true, Detail: "reachable at " + target}
}
