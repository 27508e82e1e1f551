package connectivity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	DefaultURL      = "https://snigdha-os.github.io/"
	DefaultDeadline = 5 * time.Second
)

// ErrTimeout is returned when no response arrived before the deadline.
var ErrTimeout = errors.New("connectivity probe timed out")

type Prober struct {
	Client *http.Client
}

func New() *Prober {
	return &Prober{Client: &http.Client{
		// Redirects still prove the network path works; never follow them.
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}}
}

// Probe sends a HEAD request to url. A nil error means the host answered
// within deadline, whatever the HTTP status.
func (p *Prober) Probe(ctx context.Context, url string, deadline time.Duration) error {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("connectivity probe: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return fmt.Errorf("connectivity probe: %w", err)
	}
	resp.Body.Close()
	return nil
}
