// Package fetch downloads the four world feeds from the game servers and
// turns completed downloads into query-ready stores. Downloads of one world
// run concurrently and join before parsing; concurrent loads of different
// worlds race under a last-request-wins policy.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"polismap/internal/feed"
)

const userAgent = "polismap/1.0"

// Client fetches world feeds over HTTP.
type Client struct {
	// BaseURL overrides the game-server host, mainly for tests. When set,
	// feeds are fetched from BaseURL/<server>/data/<feed>.txt instead of
	// https://<server>.grepolis.com/data/<feed>.txt.
	BaseURL string

	httpClient *http.Client
}

// NewClient creates a feed client with a 30 second request timeout.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) feedURL(server, name string) string {
	if c.BaseURL != "" {
		return fmt.Sprintf("%s/%s/data/%s.txt", c.BaseURL, server, name)
	}
	return fmt.Sprintf("https://%s.grepolis.com/data/%s.txt", server, name)
}

func (c *Client) fetchText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	return string(body), nil
}

// FetchWorld downloads all four feeds of one world concurrently and returns
// them once every download has finished. One failed download cancels the
// rest and fails the whole fetch; partial worlds are never returned.
func (c *Client) FetchWorld(ctx context.Context, server string) (feed.Raw, error) {
	raw := feed.Raw{Server: server, Timestamp: time.Now()}

	g, ctx := errgroup.WithContext(ctx)
	fetch := func(name string, dst *string) {
		g.Go(func() error {
			text, err := c.fetchText(ctx, c.feedURL(server, name))
			if err != nil {
				return err
			}
			*dst = text
			return nil
		})
	}
	fetch("players", &raw.Players)
	fetch("alliances", &raw.Alliances)
	fetch("towns", &raw.Towns)
	fetch("islands", &raw.Islands)

	if err := g.Wait(); err != nil {
		return feed.Raw{}, fmt.Errorf("world %s: %w", server, err)
	}
	return raw, nil
}
