package gecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"dexrouter/internal/models"
)

const (
	defaultBaseURL    = "https://api.geckoterminal.com/api/v2"
	defaultTokenLimit = 100
	poolPageLimit     = 100
)

// Client pulls token and pool records for one network from the public
// GeckoTerminal API. Calls are rate limited client-side; the free tier
// allows roughly 30 requests per minute.
type Client struct {
	BaseURL string
	Network string
	HTTP    *http.Client

	limiter *rate.Limiter
	log     *logrus.Logger
}

func NewClient(baseURL, network string, rps float64, log *logrus.Logger) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	network = strings.TrimSpace(network)
	if network == "" {
		network = "ethereum"
	}
	if rps <= 0 {
		rps = 0.5
	}
	return &Client{
		BaseURL: baseURL,
		Network: network,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 2),
		log:     log,
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("geckoterminal http %d", e.StatusCode)
	}
	return fmt.Sprintf("geckoterminal http %d: %s", e.StatusCode, b)
}

// FetchTokens returns the network's top tokens by market cap. limit <= 0
// falls back to 100.
func (c *Client) FetchTokens(ctx context.Context, limit int) ([]models.Token, error) {
	if limit <= 0 {
		limit = defaultTokenLimit
	}

	q := url.Values{}
	q.Set("page", "1")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sort", "market_cap")

	body, err := c.get(ctx, "/networks/"+c.Network+"/tokens", q)
	if err != nil {
		return nil, err
	}

	var res listResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to decode tokens response: %w", err)
	}

	tokens := make([]models.Token, 0, len(res.Data))
	skipped := 0
	for _, ent := range res.Data {
		var attrs tokenAttributes
		if err := json.Unmarshal(ent.Attributes, &attrs); err != nil {
			skipped++
			continue
		}
		tok := attrs.token()
		if tok.Address == "" {
			skipped++
			continue
		}
		tokens = append(tokens, tok)
	}
	if skipped > 0 {
		c.log.WithFields(logrus.Fields{
			"skipped": skipped,
			"kept":    len(tokens),
		}).Warn("Skipped malformed token records")
	}
	return tokens, nil
}

// FetchPools returns the network's deepest pools ordered by liquidity,
// walking up to pages result pages, along with the token records embedded
// in each pool entry. Embedded tokens matter: a pool's constituents are not
// always in the top-token list, and the graph builder drops pools whose
// tokens it does not know.
func (c *Client) FetchPools(ctx context.Context, pages int) ([]models.Pool, []models.Token, error) {
	if pages <= 0 {
		pages = 1
	}

	var (
		pools     []models.Pool
		tokens    []models.Token
		seenPool  = make(map[string]bool)
		seenToken = make(map[string]bool)
		skipped   int
	)

	for page := 1; page <= pages; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(poolPageLimit))
		q.Set("sort", "liquidity")

		body, err := c.get(ctx, "/networks/"+c.Network+"/pools", q)
		if err != nil {
			return nil, nil, err
		}

		var res listResponse
		if err := json.Unmarshal(body, &res); err != nil {
			return nil, nil, fmt.Errorf("failed to decode pools response: %w", err)
		}

		for _, ent := range res.Data {
			var attrs poolAttributes
			if err := json.Unmarshal(ent.Attributes, &attrs); err != nil {
				skipped++
				continue
			}
			p := attrs.pool()
			if p.Address == "" || p.Token0 == "" || p.Token1 == "" || seenPool[p.Address] {
				skipped++
				continue
			}
			seenPool[p.Address] = true
			pools = append(pools, p)

			for _, side := range []tokenAttributes{attrs.Token0, attrs.Token1} {
				tok := side.token()
				if tok.Address == "" || seenToken[tok.Address] {
					continue
				}
				seenToken[tok.Address] = true
				tokens = append(tokens, tok)
			}
		}

		if len(res.Data) < poolPageLimit {
			break
		}
	}

	if skipped > 0 {
		c.log.WithFields(logrus.Fields{
			"skipped": skipped,
			"kept":    len(pools),
		}).Warn("Skipped malformed pool records")
	}
	return pools, tokens, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.BaseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}
	return body, nil
}
