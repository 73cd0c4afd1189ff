// Package api is the EldersVR backend client: authentication, tag and film
// listing, and manifest generation from the API responses.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"eldersvr-cli/internal/config"
	"eldersvr-cli/internal/manifest"
)

const UserAgent = "EldersVR-CLI/1.0.0"

// Request timeout for backend calls. Asset downloads have their own budget in
// the download engine.
const requestTimeout = 30 * time.Second

// ErrNotAuthenticated is returned by endpoints that need a token before
// Login succeeded or a stored token was restored.
var ErrNotAuthenticated = errors.New("not authenticated, run 'eldersvr auth' first")

type Client struct {
	backend    config.Backend
	httpClient *http.Client

	token   string
	user    UserInfo
	company CompanyInfo
}

type UserInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CompanyInfo struct {
	Name string `json:"name"`
}

// Film is a single film entry as the backend returns it.
type Film struct {
	ID                int      `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	ThumbnailKey      string   `json:"thumbnailKey"`
	ThumbnailURL      string   `json:"thumbnailUrl"`
	LowQualityFileKey string   `json:"lowQualityFileKey"`
	FileKey           string   `json:"fileKey"`
	LowQualityFileURL string   `json:"lowQualityFileUrl"`
	FileURL           string   `json:"fileUrl"`
	IsActive          bool     `json:"isActive"`
	Tags              []string `json:"tags"`
}

// envelope is the {success, data} wrapper every backend response uses.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func NewClient(backend config.Backend) *Client {
	return &Client{
		backend:    backend,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// SetToken restores a previously saved session token.
func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) Token() string { return c.token }

func (c *Client) User() UserInfo { return c.user }

func (c *Client) Company() CompanyInfo { return c.company }

func (c *Client) IsAuthenticated() bool { return c.token != "" }

func (c *Client) endpoint(path string) string {
	return c.backend.APIURL + path
}

// do executes a request against the backend and unwraps the response
// envelope, returning the inner data payload.
func (c *Client) do(ctx context.Context, method, url string, body any) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %v", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %v", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("backend returned %s for %s", resp.Status, url)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to parse response: %v", err)
	}
	if !env.Success {
		if env.Message != "" {
			return nil, fmt.Errorf("backend rejected request: %s", env.Message)
		}
		return nil, errors.New("backend rejected request")
	}
	return env.Data, nil
}

// Login authenticates with the backend and keeps the access token for
// subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) error {
	data, err := c.do(ctx, http.MethodPost, c.endpoint(c.backend.AuthEndpoint), map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("authentication failed: %v", err)
	}

	var auth struct {
		Success     bool        `json:"success"`
		AccessToken string      `json:"accessToken"`
		User        UserInfo    `json:"user"`
		Company     CompanyInfo `json:"company"`
	}
	if err := json.Unmarshal(data, &auth); err != nil {
		return fmt.Errorf("authentication failed: %v", err)
	}
	if !auth.Success || auth.AccessToken == "" {
		return errors.New("authentication failed: no access token in response")
	}

	c.token = auth.AccessToken
	c.user = auth.User
	c.company = auth.Company
	return nil
}

// Logout drops the in-memory session.
func (c *Client) Logout() {
	c.token = ""
	c.user = UserInfo{}
	c.company = CompanyInfo{}
}

// FetchTags returns the available content tags.
func (c *Client) FetchTags(ctx context.Context) ([]manifest.TagAsset, error) {
	if !c.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	data, err := c.do(ctx, http.MethodGet, c.endpoint(c.backend.TagsEndpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tags: %v", err)
	}
	var tags []manifest.TagAsset
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("failed to parse tags: %v", err)
	}
	return tags, nil
}

// FetchFilms returns the film catalog.
func (c *Client) FetchFilms(ctx context.Context) ([]Film, error) {
	if !c.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	data, err := c.do(ctx, http.MethodGet, c.endpoint(c.backend.FilmsEndpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch films: %v", err)
	}
	var films struct {
		Films []Film `json:"films"`
	}
	if err := json.Unmarshal(data, &films); err != nil {
		return nil, fmt.Errorf("failed to parse films: %v", err)
	}
	return films.Films, nil
}

// BuildManifest transforms API responses into the mobile app's new_data.json
// structure, stamped with the current time.
func BuildManifest(films []Film, tags []manifest.TagAsset) *manifest.Manifest {
	m := &manifest.Manifest{
		Videos: make([]manifest.VideoAsset, 0, len(films)),
		Tags:   tags,
	}
	for _, film := range films {
		video := manifest.VideoAsset{
			ID:           strconv.Itoa(film.ID),
			Title:        film.Title,
			Description:  film.Description,
			ThumbnailKey: film.ThumbnailKey,
			ThumbnailURL: film.ThumbnailURL,
			FileKeyLow:   film.LowQualityFileKey,
			FileKey:      film.FileKey,
			FileURLLow:   film.LowQualityFileURL,
			FileURL:      film.FileURL,
			IsActive:     film.IsActive,
			Tags:         film.Tags,
		}
		if video.Tags == nil {
			video.Tags = []string{}
		}
		m.Videos = append(m.Videos, video)
	}
	m.Stamp()
	return m
}

// credential is the credential.json payload pushed to master devices so the
// mobile app can reach the backend without manual login.
type credential struct {
	Email       string      `json:"email"`
	AccessToken string      `json:"accessToken"`
	User        UserInfo    `json:"user"`
	Company     CompanyInfo `json:"company"`
	SavedAt     string      `json:"savedAt"`
}

// WriteCredential writes credential.json for the master device.
func (c *Client) WriteCredential(path, email string) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	cred := credential{
		Email:       email,
		AccessToken: c.token,
		User:        c.user,
		Company:     c.company,
		SavedAt:     time.Now().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create credential directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credential: %v", err)
	}
	return nil
}
