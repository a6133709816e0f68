package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"media-ingest/internal/logging"

	"github.com/rclone/rclone/fs/fserrors"
	"github.com/rclone/rclone/lib/pacer"
	"github.com/rclone/rclone/lib/rest"
)

const (
	// DefaultURL is the public Nominatim instance.
	DefaultURL = "https://nominatim.openstreetmap.org"

	defaultUserAgent = "media-ingest/1.0"
	defaultTimeout   = 10 * time.Second
	minSleep         = 100 * time.Millisecond
	maxSleep         = 5 * time.Second
	decayConstant    = 2
)

// ErrNotFound is returned when the service knows no place at the coordinates.
var ErrNotFound = errors.New("no place found")

// retryErrorCodes is a slice of error codes that we will retry
var retryErrorCodes = []int{
	429, // Too Many Requests.
	500, // Internal Server Error
	502, // Bad Gateway
	503, // Service Unavailable
	504, // Gateway Timeout
}

// Address is the subset of a Nominatim address breakdown used for names.
type Address struct {
	Neighbourhood string `json:"neighbourhood"`
	Suburb        string `json:"suburb"`
	Quarter       string `json:"quarter"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	Municipality  string `json:"municipality"`
	State         string `json:"state"`
	Region        string `json:"region"`
	County        string `json:"county"`
	Country       string `json:"country"`
}

// Place is a reverse geocoding answer.
type Place struct {
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
	Error       string  `json:"error,omitempty"`
}

// Compose builds "neighbourhood, city, region, country" from the non-empty
// address parts, falling back to the display name.
func (p Place) Compose() string {
	a := p.Address
	parts := make([]string, 0, 4)
	for _, part := range []string{
		firstNonEmpty(a.Neighbourhood, a.Suburb, a.Quarter),
		firstNonEmpty(a.City, a.Town, a.Village, a.Municipality),
		firstNonEmpty(a.State, a.Region, a.County),
		a.Country,
	} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return strings.TrimSpace(p.DisplayName)
	}
	return strings.Join(parts, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// APIError is a non-2xx answer from the geocoding service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("geocode: HTTP %d: %s", e.StatusCode, e.Message)
}

// errorHandler parses a non 2xx error response into an error
func errorHandler(resp *http.Response) error {
	body, err := rest.ReadBody(resp)
	if err != nil {
		body = nil
	}
	e := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}

	var decoded struct {
		Error json.RawMessage `json:"error"`
	}
	if body != nil && json.Unmarshal(body, &decoded) == nil && len(decoded.Error) > 0 {
		var msg string
		var nested struct {
			Message string `json:"message"`
		}
		switch {
		case json.Unmarshal(decoded.Error, &msg) == nil:
			e.Message = msg
		case json.Unmarshal(decoded.Error, &nested) == nil && nested.Message != "":
			e.Message = nested.Message
		}
	}
	if e.Message == "" {
		e.Message = resp.Status
	}
	return e
}

// shouldRetry returns a boolean as to whether this resp and err
// deserve to be retried.  It returns the err as a convenience
func shouldRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if fserrors.ContextError(ctx, &err) {
		return false, err
	}
	return fserrors.ShouldRetry(err) || fserrors.ShouldRetryHTTP(resp, retryErrorCodes), err
}

// Options configures a Client.
type Options struct {
	URL        string
	UserAgent  string
	Language   string
	Retries    int
	HTTPClient *http.Client
}

// Client is a Nominatim reverse geocoding client.
type Client struct {
	srv   *rest.Client
	pacer *pacer.Pacer
	lang  string
}

// New creates a Client.
func New(opt Options) *Client {
	if opt.URL == "" {
		opt.URL = DefaultURL
	}
	if opt.UserAgent == "" {
		opt.UserAgent = defaultUserAgent
	}
	if opt.Retries <= 0 {
		opt.Retries = 1
	}
	httpClient := opt.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	srv := rest.NewClient(httpClient).SetRoot(strings.TrimRight(opt.URL, "/"))
	srv.SetErrorHandler(errorHandler)
	srv.SetHeader("User-Agent", opt.UserAgent)

	return &Client{
		srv: srv,
		pacer: pacer.New(
			pacer.RetriesOption(opt.Retries),
			pacer.CalculatorOption(pacer.NewDefault(
				pacer.MinSleep(minSleep),
				pacer.MaxSleep(maxSleep),
				pacer.DecayConstant(decayConstant),
			)),
		),
		lang: opt.Language,
	}
}

// Reverse looks up the place at lat/lon.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*Place, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	params.Set("zoom", "16")
	params.Set("addressdetails", "1")
	if c.lang != "" {
		params.Set("accept-language", c.lang)
	}

	opts := rest.Opts{
		Method:     "GET",
		Path:       "/reverse",
		Parameters: params,
	}

	var (
		place Place
		resp  *http.Response
		err   error
	)
	err = c.pacer.Call(func() (bool, error) {
		place = Place{}
		resp, err = c.srv.CallJSON(ctx, &opts, nil, &place)
		return shouldRetry(ctx, resp, err)
	})
	if err != nil {
		return nil, fmt.Errorf("reverse geocode failed: %w", err)
	}
	if place.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, place.Error)
	}

	logging.Debug("Geocode: %.5f,%.5f -> %s", lat, lon, place.DisplayName)
	return &place, nil
}

// PlaceName returns the composed place name at lat/lon.
func (c *Client) PlaceName(ctx context.Context, lat, lon float64) (string, error) {
	place, err := c.Reverse(ctx, lat, lon)
	if err != nil {
		return "", err
	}
	name := place.Compose()
	if name == "" {
		return "", ErrNotFound
	}
	return name, nil
}
