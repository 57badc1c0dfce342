// Package registry fetches the active model catalog from the relay and
// keeps the rows a client can actually talk to.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rotaworks/rotachat/pkg/llm"
)

// Client talks to the relay's model listing endpoint.
type Client struct {
	target     string
	anonKey    string
	httpClient *http.Client
}

func NewClient(target, anonKey string) *Client {
	return &Client{
		target:  target,
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ListModels returns the active models, ordered for display. Rows whose
// base URL does not parse are dropped rather than surfaced, so a single
// bad config row never takes the picker down.
func (c *Client) ListModels(ctx context.Context) ([]llm.ModelOption, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.target+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if c.anonKey != "" {
		req.Header.Set("apikey", c.anonKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: models endpoint returned %d", ErrNetwork, resp.StatusCode)
	}

	var rows []llm.ModelOption
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	models := make([]llm.ModelOption, 0, len(rows))
	for _, row := range rows {
		u, err := url.Parse(row.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			continue
		}
		models = append(models, row)
	}

	sort.SliceStable(models, func(i, j int) bool {
		if models[i].Ordering != models[j].Ordering {
			return models[i].Ordering < models[j].Ordering
		}
		return models[i].DisplayName < models[j].DisplayName
	})

	return models, nil
}

// Resolve finds a model by identifier in a fetched list.
func Resolve(models []llm.ModelOption, modelIdentifier string) (llm.ModelOption, bool) {
	for _, m := range models {
		if m.ModelIdentifier == modelIdentifier {
			return m, true
		}
	}
	return llm.ModelOption{}, false
}
