package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

const (
	dropboxAPIBase     = "https://api.dropboxapi.com/2"
	dropboxContentBase = "https://content.dropboxapi.com/2"
	dropboxTokenURL    = "https://api.dropbox.com/oauth2/token"
)

// DropboxClient is a refresh-token Dropbox adapter. The short-lived access
// token is cached and renewed lazily; an expired token mid-flight costs one
// refresh and one retry, never a failed file.
type DropboxClient struct {
	appKey       string
	appSecret    string
	refreshToken string
	client       *http.Client
	log          *zap.SugaredLogger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

var _ core.SourceClient = (*DropboxClient)(nil)

func NewDropboxClient(appKey, appSecret, refreshToken string, timeout time.Duration, log *zap.SugaredLogger) *DropboxClient {
	return &DropboxClient{
		appKey:       appKey,
		appSecret:    appSecret,
		refreshToken: refreshToken,
		client:       &http.Client{Timeout: timeout},
		log:          log,
	}
}

func (d *DropboxClient) Backend() models.Backend { return models.BackendDropbox }

type dropboxEntry struct {
	Tag            string    `json:".tag"`
	Name           string    `json:"name"`
	PathLower      string    `json:"path_lower"`
	PathDisplay    string    `json:"path_display"`
	Size           int64     `json:"size"`
	ServerModified time.Time `json:"server_modified"`
	ContentHash    string    `json:"content_hash"`
}

type dropboxListResponse struct {
	Entries []dropboxEntry `json:"entries"`
	Cursor  string         `json:"cursor"`
	HasMore bool           `json:"has_more"`
}

// ListFolder lists the direct children of a folder, following cursors until
// the backend reports no more entries.
func (d *DropboxClient) ListFolder(ctx context.Context, path string) ([]models.RawFileEntry, error) {
	var entries []models.RawFileEntry

	body, err := d.rpc(ctx, dropboxAPIBase+"/files/list_folder", map[string]any{
		"path":      normalizeDropboxPath(path),
		"recursive": false,
	})
	if err != nil {
		return nil, fmt.Errorf("dropbox list %s: %w", path, err)
	}

	for {
		var page dropboxListResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("dropbox list %s: decode: %w", path, err)
		}
		for _, e := range page.Entries {
			entries = append(entries, models.RawFileEntry{
				Backend:  models.BackendDropbox,
				Name:     e.Name,
				Path:     e.PathLower,
				Size:     e.Size,
				Modified: e.ServerModified,
				IsFolder: e.Tag == "folder",
				Revision: e.ContentHash,
			})
		}
		if !page.HasMore {
			return entries, nil
		}
		body, err = d.rpc(ctx, dropboxAPIBase+"/files/list_folder/continue", map[string]any{
			"cursor": page.Cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("dropbox list continue %s: %w", path, err)
		}
	}
}

// Download fetches the file content. Dropbox wants the path in a header, not
// the body, on the content host.
func (d *DropboxClient) Download(ctx context.Context, path string) ([]byte, error) {
	arg, _ := json.Marshal(map[string]string{"path": path})

	data, err := d.doAuthed(ctx, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, dropboxContentBase+"/files/download", nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Dropbox-API-Arg", string(arg))
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("dropbox download %s: %w", path, err)
	}
	return data, nil
}

type dropboxLinkResponse struct {
	URL string `json:"url"`
}

type dropboxLinkListResponse struct {
	Links []dropboxLinkResponse `json:"links"`
}

// ShareLink returns a shared link for the file, reusing an existing one when
// Dropbox reports the link already exists.
func (d *DropboxClient) ShareLink(ctx context.Context, path string) (string, error) {
	body, err := d.rpc(ctx, dropboxAPIBase+"/sharing/create_shared_link_with_settings", map[string]any{
		"path": path,
	})
	if err == nil {
		var link dropboxLinkResponse
		if jerr := json.Unmarshal(body, &link); jerr == nil && link.URL != "" {
			return normalizeShareURL(link.URL), nil
		}
	}
	if err != nil && !strings.Contains(err.Error(), "shared_link_already_exists") {
		return "", fmt.Errorf("dropbox share %s: %w", path, err)
	}

	body, err = d.rpc(ctx, dropboxAPIBase+"/sharing/list_shared_links", map[string]any{
		"path":        path,
		"direct_only": true,
	})
	if err != nil {
		return "", fmt.Errorf("dropbox list shared links %s: %w", path, err)
	}
	var list dropboxLinkListResponse
	if err := json.Unmarshal(body, &list); err != nil || len(list.Links) == 0 {
		return "", fmt.Errorf("dropbox share %s: no shared link available", path)
	}
	return normalizeShareURL(list.Links[0].URL), nil
}

// rpc posts a JSON body to an api-host endpoint and returns the raw response.
func (d *DropboxClient) rpc(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return d.doAuthed(ctx, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

// doAuthed runs an authenticated request, refreshing the access token and
// retrying exactly once when Dropbox rejects it.
func (d *DropboxClient) doAuthed(ctx context.Context, build func(token string) (*http.Request, error)) ([]byte, error) {
	token, err := d.token(ctx, false)
	if err != nil {
		return nil, err
	}

	data, status, err := d.send(build, token)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		d.log.Infow("dropbox access token rejected, refreshing")
		if token, err = d.token(ctx, true); err != nil {
			return nil, err
		}
		if data, status, err = d.send(build, token); err != nil {
			return nil, err
		}
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("status %d: %s", status, truncateBody(data))
	}
	return data, nil
}

func (d *DropboxClient) send(build func(token string) (*http.Request, error), token string) ([]byte, int, error) {
	req, err := build(token)
	if err != nil {
		return nil, 0, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return data, resp.StatusCode, nil
}

type dropboxTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a cached access token, exchanging the refresh token when the
// cache is cold, near expiry, or force is set.
func (d *DropboxClient) token(ctx context.Context, force bool) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !force && d.accessToken != "" && time.Until(d.expiresAt) > time.Minute {
		return d.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {d.refreshToken},
		"client_id":     {d.appKey},
		"client_secret": {d.appSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dropboxTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("dropbox token refresh: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("dropbox token refresh: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("dropbox token refresh: status %d: %s", resp.StatusCode, truncateBody(data))
	}

	var tok dropboxTokenResponse
	if err := json.Unmarshal(data, &tok); err != nil {
		return "", fmt.Errorf("dropbox token refresh: decode: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("dropbox token refresh: empty access token")
	}

	d.accessToken = tok.AccessToken
	d.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return d.accessToken, nil
}

// normalizeDropboxPath maps "/" to the API's "" root convention.
func normalizeDropboxPath(path string) string {
	if path == "/" {
		return ""
	}
	return path
}

// normalizeShareURL rewrites dl=0 preview links into direct links.
func normalizeShareURL(u string) string {
	return strings.Replace(u, "?dl=0", "?dl=1", 1)
}

func truncateBody(data []byte) string {
	const max = 300
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
