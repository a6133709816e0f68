package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rclone/rclone/fs/fserrors"
	"github.com/rclone/rclone/lib/pacer"
	"github.com/rclone/rclone/lib/random"
	"github.com/rclone/rclone/lib/rest"
)

const (
	defaultTimeout = 5 * time.Minute
	minSleep       = 10 * time.Millisecond
	maxSleep       = 2 * time.Second
	decayConstant  = 2

	// quotaErrorCode marks a quota rejection in an error body.
	quotaErrorCode = "quota_exceeded"
)

// retryErrorCodes is a slice of error codes that we will retry
var retryErrorCodes = []int{
	429, // Too Many Requests.
	500, // Internal Server Error
	502, // Bad Gateway
	503, // Service Unavailable
	504, // Gateway Timeout
	509, // Bandwidth Limit Exceeded
}

// Options configures the HTTP clients.
type Options struct {
	URL        string
	Token      string
	Retries    int
	HTTPClient *http.Client
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Error struct {
		Code    string    `json:"code"`
		Message string    `json:"message"`
		Kind    QuotaKind `json:"kind"`
		Current int64     `json:"current"`
		Limit   int64     `json:"limit"`
	} `json:"error"`
}

// errorHandler parses a non 2xx error response into an error
func errorHandler(resp *http.Response) error {
	body, err := rest.ReadBody(resp)
	if err != nil {
		body = nil
	}

	var e errorBody
	if body != nil {
		_ = json.Unmarshal(body, &e)
	}
	if e.Error.Code == quotaErrorCode || e.Error.Kind == QuotaPhotoLimit || e.Error.Kind == QuotaDurationLimit {
		return &QuotaViolation{
			Kind:    e.Error.Kind,
			Current: e.Error.Current,
			Limit:   e.Error.Limit,
			Message: e.Error.Message,
		}
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Code:       e.Error.Code,
		Message:    e.Error.Message,
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = resp.Status
	}
	return apiErr
}

// shouldRetry returns a boolean as to whether this resp and err
// deserve to be retried.  It returns the err as a convenience
func shouldRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if fserrors.ContextError(ctx, &err) {
		return false, err
	}
	return fserrors.ShouldRetry(err) || fserrors.ShouldRetryHTTP(resp, retryErrorCodes), err
}

// newClient builds the rest client and pacer shared by the HTTP backends.
func newClient(opt Options) (*rest.Client, *pacer.Pacer) {
	httpClient := opt.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	retries := opt.Retries
	if retries <= 0 {
		retries = 1
	}

	srv := rest.NewClient(httpClient).SetRoot(strings.TrimRight(opt.URL, "/"))
	srv.SetErrorHandler(errorHandler)
	if opt.Token != "" {
		srv.SetHeader("Authorization", "Bearer "+opt.Token)
	}

	p := pacer.New(
		pacer.RetriesOption(retries),
		pacer.CalculatorOption(pacer.NewDefault(
			pacer.MinSleep(minSleep),
			pacer.MaxSleep(maxSleep),
			pacer.DecayConstant(decayConstant),
		)),
	)
	return srv, p
}

// PathHint builds the storage path for a blob:
// {account}/{role}/{unixMillis}-{random}{ext}.
func PathHint(account string, role Role, ext string, now time.Time) string {
	if account == "" {
		account = "anonymous"
	}
	return fmt.Sprintf("%s/%s/%d-%s%s", account, role, now.UnixMilli(), strings.ToLower(random.String(8)), strings.ToLower(ext))
}
