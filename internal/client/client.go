package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "photo-frame-portal/internal/errors"
	"photo-frame-portal/internal/httputil"
	"photo-frame-portal/internal/imaging"
	"photo-frame-portal/internal/models"
)

const defaultTimeout = 60 * time.Second

// Client talks to the portal API on behalf of one device
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client for the server at baseURL. token may be empty until
// SignUp or Login succeeds.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		token:   token,
	}
}

// SetToken replaces the bearer token used for every request
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// AuthResult is returned by SignUp and Login
type AuthResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Me is the session-restore view of the signed-in user
type Me struct {
	User         *models.User     `json:"user"`
	Pair         *models.PairInfo `json:"pair,omitempty"`
	NeedsPairing bool             `json:"needs_pairing"`
}

// SignUp creates an account and keeps its token
func (c *Client) SignUp(ctx context.Context, email, password string) (*AuthResult, error) {
	return c.authenticate(ctx, "/api/v1/auth/signup", email, password)
}

// Login signs in and keeps the token
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	return c.authenticate(ctx, "/api/v1/auth/login", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (*AuthResult, error) {
	var res AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, path, body, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

// Me restores the session: the user plus pair info, or NeedsPairing
func (c *Client) Me(ctx context.Context) (*Me, error) {
	var res Me
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/me", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UpdatePushToken stores the APNs device token; nil clears it
func (c *Client) UpdatePushToken(ctx context.Context, pushToken *string) error {
	return c.doJSON(ctx, http.MethodPut, "/api/v1/me/push-token", map[string]*string{"push_token": pushToken}, nil)
}

// CreatePair creates a pair with the caller as device A
func (c *Client) CreatePair(ctx context.Context, displayName string) (*models.PairInfo, error) {
	var info models.PairInfo
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/pairs", map[string]string{"display_name": displayName}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// JoinPair joins the pair behind code as device B
func (c *Client) JoinPair(ctx context.Context, code, displayName string) (*models.PairInfo, error) {
	var info models.PairInfo
	body := map[string]string{"code": code, "display_name": displayName}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/pairs/join", body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CurrentPair returns the caller's pair info
func (c *Client) CurrentPair(ctx context.Context) (*models.PairInfo, error) {
	var info models.PairInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/pairs/current", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListPhotos returns the pair's gallery in display order
func (c *Client) ListPhotos(ctx context.Context) ([]*models.Photo, error) {
	var res struct {
		Photos []*models.Photo `json:"photos"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/photos", nil, &res); err != nil {
		return nil, err
	}
	return res.Photos, nil
}

// UploadPhotos sends files as one batch. A report is returned whenever the
// server processed the batch, including when some or all files failed.
func (c *Client) UploadPhotos(ctx context.Context, files []imaging.Source) (*models.UploadReport, error) {
	if len(files) == 0 {
		return nil, apperrors.ValidationError("no files to upload")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := createFilePart(mw, f)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, fmt.Errorf("failed to write form file: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, "/api/v1/photos", mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusMultiStatus, http.StatusUnprocessableEntity:
	default:
		return nil, decodeError(resp)
	}

	var res struct {
		models.UploadReport
		Error *httputil.ErrorBody `json:"error,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("failed to decode upload report: %w", err)
	}
	if res.Error != nil {
		return nil, apperrors.New(res.Error.Code, res.Error.Message).WithDetails(res.Error.Details)
	}
	return &res.UploadReport, nil
}

func createFilePart(mw *multipart.Writer, f imaging.Source) (io.Writer, error) {
	if f.ContentType == "" {
		return mw.CreateFormFile("files", f.Filename)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.Filename))
	h.Set("Content-Type", f.ContentType)
	return mw.CreatePart(h)
}

// DeletePhoto removes one photo from the pair's gallery
func (c *Client) DeletePhoto(ctx context.Context, photoID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/photos/"+url.PathEscape(photoID), nil, nil)
}

// PublishEvent sends a message, emoji or photo_nav event as this device
func (c *Client) PublishEvent(ctx context.Context, eventType models.EventType, payload any) (*models.Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	body := struct {
		EventType models.EventType `json:"event_type"`
		Payload   json.RawMessage  `json:"payload"`
	}{eventType, raw}

	var event models.Event
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/events", body, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// Events returns the pair's events with seq greater than since
func (c *Client) Events(ctx context.Context, since int64) ([]*models.Event, error) {
	var res struct {
		Events []*models.Event `json:"events"`
	}
	path := "/api/v1/events?since=" + strconv.FormatInt(since, 10)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Events, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	resp, err := c.send(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Backend(method+" "+path, err)
	}
	return resp, nil
}

// decodeError turns an error response into an AppError carrying the server's code
func decodeError(resp *http.Response) error {
	var body httputil.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Code == "" {
		return apperrors.New(apperrors.ErrCodeBackend, fmt.Sprintf("unexpected response status %d", resp.StatusCode))
	}
	appErr := apperrors.New(body.Error.Code, body.Error.Message)
	if body.Error.Details != nil {
		appErr.WithDetails(body.Error.Details)
	}
	return appErr
}
