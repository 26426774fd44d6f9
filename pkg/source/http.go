package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/bastiangx/campuscomplete/pkg/recovery"
	"github.com/bastiangx/campuscomplete/pkg/suggest"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/tidwall/gjson"
)

const maxResponseBytes = 4 << 20

// HTTP queries a remote endpoint with GET <base>?q=<query>&scope=<scope>.
// The response is a JSON array of {id, name, slug, category, weight}
// objects, or an object holding that array under "results".
type HTTP struct {
	base   string
	client *http.Client
}

// NewHTTP creates a source for base. A nil client uses a pooled cleanhttp client.
func NewHTTP(base string, client *http.Client) *HTTP {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	return &HTTP{base: base, client: client}
}

func (h *HTTP) Lookup(ctx context.Context, query, scope string) ([]suggest.Suggestion, error) {
	u, err := url.Parse(h.base)
	if err != nil {
		return nil, fmt.Errorf("invalid source url %q: %w", h.base, err)
	}
	params := u.Query()
	params.Set("q", query)
	params.Set("scope", scope)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, recovery.NewError(recovery.KindNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, recovery.NewError(recovery.KindAPI,
			fmt.Sprintf("server responded with status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, recovery.NewError(recovery.KindNetwork, "failed to read response", err)
	}
	return parseResults(body, scope)
}

func parseResults(body []byte, scope string) ([]suggest.Suggestion, error) {
	if !gjson.ValidBytes(body) {
		return nil, recovery.NewError(recovery.KindAPI, "malformed JSON response", nil)
	}
	res := gjson.ParseBytes(body)
	if res.IsObject() {
		res = res.Get("results")
	}
	if !res.IsArray() {
		return nil, recovery.NewError(recovery.KindAPI, "response holds no result list", nil)
	}

	var out []suggest.Suggestion
	res.ForEach(func(_, item gjson.Result) bool {
		name := item.Get("name").String()
		slug := item.Get("slug").String()
		if slug == "" {
			slug = item.Get("id").String()
		}
		if name == "" || slug == "" {
			return true
		}
		var weight *int
		if w := item.Get("weight"); w.Exists() && w.Type == gjson.Number {
			weight = suggest.WeightOf(int(w.Int()))
		}
		out = append(out, suggest.New(scope, suggest.ParseCategory(item.Get("category").String()), slug, name, weight))
		return true
	})
	return out, nil
}
