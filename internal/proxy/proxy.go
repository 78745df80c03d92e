// Package proxy forwards signaling-originated HTTP requests to named local
// services by port, built on net/http/httputil.ReverseProxy the same way
// the teacher's login-node proxy forwards to a single upstream host,
// generalized here to a small service-name registry.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const requestTimeout = 30 * time.Second

var allowedMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// Registry maps a service name to the local port it listens on.
type Registry struct {
	services map[string]int
}

func NewRegistry(services map[string]int) *Registry {
	if services == nil {
		services = map[string]int{}
	}
	return &Registry{services: services}
}

// ParseServices parses "name:port,name:port,..." as read from COCOON_SERVICES.
func ParseServices(spec string) map[string]int {
	out := map[string]int{}
	if spec == "" {
		return out
	}
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			continue
		}
		var port int
		if _, err := fmt.Sscanf(parts[1], "%d", &port); err != nil {
			continue
		}
		out[parts[0]] = port
	}
	return out
}

// Result is the outcome of a proxied request, always a value (never a Go
// error) since every failure has a defined wire representation.
type Result struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// Forward proxies one request to serviceName on localhost:port using an
// httputil.ReverseProxy, recording its response into a Result instead of
// streaming it to a live http.ResponseWriter, since the caller here is a
// signaling frame handler rather than an HTTP server.
func (r *Registry) Forward(ctx context.Context, serviceName, method, path string, headers map[string]string, body string) Result {
	port, ok := r.services[serviceName]
	if !ok {
		return Result{StatusCode: http.StatusNotFound, Body: "Service not found"}
	}

	upperMethod := strings.ToUpper(method)
	if !allowedMethods[upperMethod] {
		return Result{StatusCode: http.StatusMethodNotAllowed, Body: "Unsupported method: " + method}
	}

	target, err := url.Parse(fmt.Sprintf("http://127.0.0.1:%d", port))
	if err != nil {
		return Result{StatusCode: http.StatusBadGateway, Body: "Bad gateway: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, upperMethod, target.String()+path, bytes.NewReader([]byte(body)))
	if err != nil {
		return Result{StatusCode: http.StatusBadGateway, Body: "Bad gateway: " + err.Error()}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rp := httputil.NewSingleHostReverseProxy(target)
	rp.Transport = &http.Transport{}
	var proxyErr error
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		proxyErr = err
		w.WriteHeader(http.StatusBadGateway)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	rec := httptest.NewRecorder()
	rp.ServeHTTP(rec, req.WithContext(ctx))

	if proxyErr != nil {
		return Result{StatusCode: http.StatusBadGateway, Body: "Bad gateway: " + proxyErr.Error()}
	}

	resp := rec.Result()
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{StatusCode: http.StatusBadGateway, Body: "Bad gateway: " + err.Error()}
	}

	flat := map[string]string{}
	for k, vs := range resp.Header {
		if len(vs) == 0 {
			continue
		}
		v := vs[0]
		if !utf8.ValidString(v) {
			continue
		}
		flat[k] = v
	}

	return Result{StatusCode: resp.StatusCode, Headers: flat, Body: string(respBody)}
}
