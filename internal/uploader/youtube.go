package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"reelpilot/internal/quota"
	"reelpilot/pkg/httputil"
)

const (
	uploadURL     = "https://www.googleapis.com/upload/youtube/v3/videos"
	thumbnailsURL = "https://www.googleapis.com/upload/youtube/v3/thumbnails/set"
	commentsURL   = "https://www.googleapis.com/youtube/v3/commentThreads"
	categoryID    = "22"
	platform      = "youtube"
)

var _ Uploader = (*YouTubeClient)(nil)

type YouTubeClient struct {
	auth    *Auth
	privacy string
}

type Auth struct {
	config    *oauth2.Config
	token     *oauth2.Token
	tokenPath string
}

type uploadResponse struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

type videoSnippet struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CategoryID  string   `json:"categoryId"`
}

type videoStatus struct {
	PrivacyStatus string `json:"privacyStatus"`
	PublishAt     string `json:"publishAt,omitempty"`
}

type videoMetadata struct {
	Snippet videoSnippet `json:"snippet"`
	Status  videoStatus  `json:"status"`
}

var scopes = []string{
	"https://www.googleapis.com/auth/youtube.upload",
	"https://www.googleapis.com/auth/youtube",
	"https://www.googleapis.com/auth/youtube.force-ssl",
}

func NewAuth(clientID, clientSecret, tokenPath string) *Auth {
	return &Auth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       scopes,
			RedirectURL:  "http://localhost:8080/callback",
		},
		tokenPath: tokenPath,
	}
}

func NewYouTubeClient(auth *Auth, privacy string) *YouTubeClient {
	if privacy == "" {
		privacy = "private"
	}
	return &YouTubeClient{auth: auth, privacy: privacy}
}

// Upload sends the video with its metadata and, when req.PublishAt is set,
// schedules it: the platform requires scheduled videos to stay private until
// they go live. A thumbnail, when present, is set in a follow-up call whose
// failure does not fail the upload.
func (c *YouTubeClient) Upload(ctx context.Context, req Request) (*Response, error) {
	client, err := c.httpClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("get auth client: %w", err)
	}

	status := videoStatus{PrivacyStatus: c.privacy}
	if !req.PublishAt.IsZero() {
		status.PrivacyStatus = "private"
		status.PublishAt = req.PublishAt.UTC().Format(time.RFC3339)
	}

	metadata := videoMetadata{
		Snippet: videoSnippet{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			CategoryID:  categoryID,
		},
		Status: status,
	}

	body, contentType, err := buildUploadBody(metadata, req.FilePath)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s?uploadType=multipart&part=snippet,status", uploadURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	respBody, err := doJSON(client, httpReq)
	if err != nil {
		return nil, err
	}

	var uploadResp uploadResponse
	if err := json.Unmarshal(respBody, &uploadResp); err != nil {
		return nil, fmt.Errorf("parse upload response: %w", err)
	}
	if uploadResp.ID == "" {
		return nil, fmt.Errorf("upload response missing video id")
	}

	if req.ThumbnailPath != "" {
		if err := c.setThumbnail(ctx, client, uploadResp.ID, req.ThumbnailPath); err != nil {
			// Thumbnail is cosmetic; the upload itself already succeeded.
			slog.Warn("Failed to set thumbnail", "video_id", uploadResp.ID, "error", err)
		}
	}

	return &Response{
		ID:       uploadResp.ID,
		URL:      fmt.Sprintf("https://youtube.com/watch?v=%s", uploadResp.ID),
		Platform: platform,
	}, nil
}

// InsertComment posts a top-level comment on a published video and returns
// the comment thread id.
func (c *YouTubeClient) InsertComment(ctx context.Context, videoID, text string) (string, error) {
	client, err := c.httpClient(ctx)
	if err != nil {
		return "", fmt.Errorf("get auth client: %w", err)
	}

	payload := map[string]any{
		"snippet": map[string]any{
			"videoId": videoID,
			"topLevelComment": map[string]any{
				"snippet": map[string]string{"textOriginal": text},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal comment: %w", err)
	}

	url := fmt.Sprintf("%s?part=snippet", commentsURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, err := doJSON(client, req)
	if err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("parse comment response: %w", err)
	}
	return result.ID, nil
}

func (c *YouTubeClient) Platform() string {
	return platform
}

func (c *YouTubeClient) Auth() *Auth {
	return c.auth
}

func (c *YouTubeClient) setThumbnail(ctx context.Context, client *httputil.RetryClient, videoID, thumbnailPath string) error {
	f, err := os.Open(thumbnailPath)
	if err != nil {
		return fmt.Errorf("open thumbnail: %w", err)
	}
	defer func() { _ = f.Close() }()

	url := fmt.Sprintf("%s?videoId=%s", thumbnailsURL, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, f)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")

	_, err = doJSON(client, req)
	return err
}

func (c *YouTubeClient) httpClient(ctx context.Context) (*httputil.RetryClient, error) {
	client, err := c.auth.Client(ctx)
	if err != nil {
		return nil, err
	}
	return httputil.NewRetryClient(client, httputil.DefaultRetryConfig()), nil
}

// doJSON executes the request and returns the response body, mapping the
// platform's quota refusal to *quota.QuotaExceededError so callers can defer
// instead of retrying.
func doJSON(client *httputil.RetryClient, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	if resp.StatusCode == http.StatusForbidden && strings.Contains(string(body), "quotaExceeded") {
		return nil, &quota.QuotaExceededError{Operation: "upload", Need: quota.CostUpload}
	}
	return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
}

func buildUploadBody(metadata videoMetadata, filePath string) (*bytes.Buffer, string, error) {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, "", fmt.Errorf("marshal metadata: %w", err)
	}

	videoFile, err := os.Open(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("open video file: %w", err)
	}
	defer func() { _ = videoFile.Close() }()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	metadataPart, err := writer.CreateFormField("snippet")
	if err != nil {
		return nil, "", fmt.Errorf("create metadata part: %w", err)
	}
	if _, err := metadataPart.Write(metadataJSON); err != nil {
		return nil, "", fmt.Errorf("write metadata: %w", err)
	}

	videoPart, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, "", fmt.Errorf("create video part: %w", err)
	}
	if _, err := io.Copy(videoPart, videoFile); err != nil {
		return nil, "", fmt.Errorf("copy video: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

func (a *Auth) LoadToken() error {
	data, err := os.ReadFile(a.tokenPath)
	if err != nil {
		return fmt.Errorf("read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("parse token: %w", err)
	}

	a.token = &token
	return nil
}

func (a *Auth) SaveToken() error {
	data, err := json.MarshalIndent(a.token, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	if err := os.WriteFile(a.tokenPath, data, 0600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

func (a *Auth) AuthURL() string {
	return a.config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
}

func (a *Auth) Exchange(ctx context.Context, code string) error {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}

	a.token = token
	return a.SaveToken()
}

func (a *Auth) Client(ctx context.Context) (*http.Client, error) {
	if a.token == nil {
		if err := a.LoadToken(); err != nil {
			return nil, err
		}
	}
	return a.config.Client(ctx, a.token), nil
}

func (a *Auth) IsAuthenticated() bool {
	if a.token == nil {
		if err := a.LoadToken(); err != nil {
			return false
		}
	}
	return a.token != nil && a.token.Valid()
}
