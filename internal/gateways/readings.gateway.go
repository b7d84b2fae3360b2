package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/valyala/fasthttp"
)

var ErrReadingsUnavailable = errors.New("readings unavailable")

// ReadingsClient fetches a day's lectionary from the readings service.
type ReadingsClient struct {
	baseURL string
	timeout time.Duration
	client  *fasthttp.Client
}

func NewReadingsClient(baseURL string, timeout time.Duration) *ReadingsClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ReadingsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  newHTTPClient(timeout, 16),
	}
}

// Fetch returns the readings for dateKey (YYYY-MM-DD) in the given bible
// version. A reply without first reading, psalm or gospel counts as
// unavailable.
func (c *ReadingsClient) Fetch(ctx context.Context, dateKey, version string) (*model.Readings, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/readings/%s?version=%s", c.baseURL, url.PathEscape(dateKey), url.QueryEscape(version))
	body, err := doRequest(ctx, c.client, fasthttp.MethodGet, endpoint, "", nil, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("fetch readings %s/%s: %w", dateKey, version, err)
	}

	var readings model.Readings
	if err := json.Unmarshal(body, &readings); err != nil {
		return nil, fmt.Errorf("decode readings: %w", err)
	}
	if readings.FirstReading.Empty() || readings.Psalm.Empty() || readings.Gospel.Empty() {
		return nil, fmt.Errorf("%w: incomplete readings for %s", ErrReadingsUnavailable, dateKey)
	}
	if readings.SecondReading.Empty() {
		readings.SecondReading = nil
	}
	if readings.Date == "" {
		readings.Date = dateKey
	}
	if readings.Version == "" {
		readings.Version = version
	}
	return &readings, nil
}
