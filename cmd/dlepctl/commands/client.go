package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// requestTimeout bounds a single HTTP bridge request.
const requestTimeout = 10 * time.Second

// runCommand runs one remote-control command through dlepd's HTTP bridge
// and returns its output body as a string.
func runCommand(addr, command, param string) (string, error) {
	q := url.Values{}
	q.Set("c", command)
	if param != "" {
		q.Set("p", param)
	}

	u := url.URL{Scheme: "http", Host: addr, RawQuery: q.Encode()}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request %s: %w", u.String(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("dlepd returned %s: %s", resp.Status, string(body))
	}
	return string(body), nil
}
