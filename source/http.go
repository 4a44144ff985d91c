package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/halfmoth/stickersync/iox"
	"github.com/halfmoth/stickersync/proxy"
	"github.com/halfmoth/stickersync/types"
)

// HTTPConfig configures an HTTP hub source.
type HTTPConfig struct {
	// Template is the parsed URL template (required).
	Template *Template
	// Vars are the hub substitution values for the template.
	Vars Vars
	// Proxy selects an upstream proxy per request. Nil falls back to
	// the environment proxy settings.
	Proxy *proxy.Selector
}

// HTTPSource fetches hub content over HTTP(S).
//
// Each Fetch performs a single GET bounded by the caller's context.
// There is no client-level timeout: the per-attempt context owns the
// deadline.
type HTTPSource struct {
	config HTTPConfig
	client *http.Client
}

// NewHTTPSource creates an HTTP source from the given config.
func NewHTTPSource(cfg HTTPConfig) (*HTTPSource, error) {
	if cfg.Template == nil {
		return nil, errors.New("http source requires a url template")
	}

	transport := &http.Transport{
		Proxy: cfg.Proxy.ProxyFunc(),
	}
	return &HTTPSource{
		config: cfg,
		client: &http.Client{Transport: transport},
	}, nil
}

// Fetch performs a single GET for the given hub-relative path.
func (s *HTTPSource) Fetch(ctx context.Context, p string) ([]byte, error) {
	u := s.config.Template.Resolve(s.config.Vars, p)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "stickersync/"+types.Version)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classifyTransport(p, err)
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain body to allow connection reuse
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{Kind: KindStatus, Path: p, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(p, err)
	}
	return body, nil
}

// Describe returns the hub location for logs and reports.
func (s *HTTPSource) Describe() string {
	return fmt.Sprintf("%s/%s@%s", s.config.Vars.Owner, s.config.Vars.Repo, s.config.Vars.Ref)
}

// Close releases idle connections.
func (s *HTTPSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// classifyTransport maps a transport-level failure to a FetchError.
// Deadline and net timeouts become KindTimeout; everything else that
// prevented a complete response is KindConnection.
func classifyTransport(p string, err error) error {
	kind := KindConnection
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		kind = KindTimeout
	}
	return &FetchError{Kind: kind, Path: p, Err: err}
}

// Verify HTTPSource implements the source interface.
var _ Source = (*HTTPSource)(nil)
