package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rclone/rclone/lib/pacer"
	"github.com/rclone/rclone/lib/rest"
)

// HTTPRegistrar registers assets through the library API.
type HTTPRegistrar struct {
	srv   *rest.Client
	pacer *pacer.Pacer
}

// NewHTTPRegistrar creates a Registrar client.
func NewHTTPRegistrar(opt Options) *HTTPRegistrar {
	srv, p := newClient(opt)
	return &HTTPRegistrar{srv: srv, pacer: p}
}

type createResponse struct {
	ID string `json:"id"`
}

type albumRequest struct {
	Assets []AssetRecord `json:"assets"`
}

type albumResponse struct {
	Added int `json:"added"`
}

func quotaParams(skipQuota bool) url.Values {
	if !skipQuota {
		return nil
	}
	return url.Values{"skipQuota": {strconv.FormatBool(true)}}
}

// CreateInLibrary implements Registrar with POST /assets.
func (r *HTTPRegistrar) CreateInLibrary(ctx context.Context, asset AssetRecord, skipQuota bool) (string, error) {
	start := time.Now()
	opts := rest.Opts{
		Method:     "POST",
		Path:       "/assets",
		Parameters: quotaParams(skipQuota),
	}

	var (
		result createResponse
		resp   *http.Response
		err    error
	)
	err = r.pacer.Call(func() (bool, error) {
		resp, err = r.srv.CallJSON(ctx, &opts, &asset, &result)
		return shouldRetry(ctx, resp, err)
	})
	observeRequest("create", start, err)
	if err != nil {
		var quota *QuotaViolation
		if errors.As(err, &quota) {
			return "", quota
		}
		return "", fmt.Errorf("couldn't register %s: %w", asset.FileName, err)
	}
	if result.ID == "" {
		return "", errors.New("registrar returned no asset id")
	}
	return result.ID, nil
}

// AddToAlbum implements Registrar with POST /albums/{id}/assets.
func (r *HTTPRegistrar) AddToAlbum(ctx context.Context, albumID string, assets []AssetRecord, skipQuota bool) (int, error) {
	start := time.Now()
	opts := rest.Opts{
		Method:     "POST",
		Path:       "/albums/" + url.PathEscape(albumID) + "/assets",
		Parameters: quotaParams(skipQuota),
	}
	request := albumRequest{Assets: assets}

	var (
		result albumResponse
		resp   *http.Response
		err    error
	)
	err = r.pacer.Call(func() (bool, error) {
		resp, err = r.srv.CallJSON(ctx, &opts, &request, &result)
		return shouldRetry(ctx, resp, err)
	})
	observeRequest("album", start, err)
	if err != nil {
		var quota *QuotaViolation
		if errors.As(err, &quota) {
			return 0, quota
		}
		return 0, fmt.Errorf("couldn't add %d assets to album %s: %w", len(assets), albumID, err)
	}
	return result.Added, nil
}
