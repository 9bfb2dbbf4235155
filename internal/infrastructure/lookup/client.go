package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mealsmith/backend/internal/domain"
)

// FoodDBClient defines the interface for the canonical food database API.
type FoodDBClient interface {
	SearchFoods(ctx context.Context, query string) (*domain.FoodDBSearchResponse, error)
}

// Client talks to the canonical food database over HTTP.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a canonical food database client. The provider allows
// 1000 requests per hour, so the limiter runs at 1000/3600 ≈ 0.278 req/sec
// with a burst of 10.
func NewClient(apiKey, baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiKey:      apiKey,
		baseURL:     baseURL,
		rateLimiter: rate.NewLimiter(rate.Limit(0.278), 10),
		logger:      logger,
	}
}

// doRequest executes an HTTP GET request with proper headers.
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "MealSmith/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFoodDBFailure, err)
	}

	return resp, nil
}

// SearchFoods searches the canonical database for an ingredient query.
// Transient failures are retried up to 3 times with a short linear backoff.
func (c *Client) SearchFoods(ctx context.Context, query string) (*domain.FoodDBSearchResponse, error) {
	endpoint := fmt.Sprintf("%s/v1/foods/search", c.baseURL)
	params := url.Values{}
	params.Add("query", query)
	params.Add("api_key", c.apiKey)
	params.Add("pageSize", "10")

	reqURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		resp, err := c.doRequest(ctx, reqURL)
		if err != nil {
			c.logger.Warn("food db request error",
				zap.Int("attempt", attempt), zap.Error(err))
			lastErr = err
			time.Sleep(time.Duration(attempt*500) * time.Millisecond)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			if resp.StatusCode == http.StatusNotFound {
				return nil, domain.ErrRecordNotFound
			}
			c.logger.Warn("food db api error",
				zap.Int("attempt", attempt),
				zap.Int("status", resp.StatusCode),
				zap.ByteString("body", body))
			lastErr = fmt.Errorf("%w: status %d", domain.ErrFoodDBFailure, resp.StatusCode)
			time.Sleep(time.Duration(attempt*500) * time.Millisecond)
			continue
		}

		var searchResp domain.FoodDBSearchResponse
		if err := json.Unmarshal(body, &searchResp); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}

		if len(searchResp.Foods) == 0 {
			return nil, domain.ErrRecordNotFound
		}

		c.logger.Debug("food db search ok",
			zap.String("query", query), zap.Int("foods", len(searchResp.Foods)))
		return &searchResp, nil
	}

	return nil, lastErr
}
