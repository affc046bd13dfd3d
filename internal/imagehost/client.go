// Package imagehost uploads pet photos to an imgbb-compatible image host.
package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"time"
)

const (
	// DefaultUploadURL is the imgbb upload endpoint.
	DefaultUploadURL = "https://api.imgbb.com/1/upload"

	// ClientTimeout is the total request timeout.
	ClientTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout is time to wait for response headers.
	ResponseHeaderTimeout = 20 * time.Second

	maxResponseSize = 1 << 20
)

var (
	// ErrNotConfigured is returned when no API key was provided.
	ErrNotConfigured = errors.New("image host not configured")
	// ErrUploadRejected indicates the host answered without a usable URL.
	ErrUploadRejected = errors.New("image upload rejected")
)

// NewHTTPClient creates an HTTP client configured for image uploads.
// It has bounded timeouts and does not follow redirects.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   5,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Client uploads images with an API key.
type Client struct {
	http      *http.Client
	uploadURL string
	apiKey    string
}

// NewClient creates a Client. An empty uploadURL uses DefaultUploadURL and a
// nil httpClient uses NewHTTPClient.
func NewClient(apiKey, uploadURL string, httpClient *http.Client) *Client {
	if uploadURL == "" {
		uploadURL = DefaultUploadURL
	}
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	return &Client{
		http:      httpClient,
		uploadURL: uploadURL,
		apiKey:    apiKey,
	}
}

type uploadResponse struct {
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Data    struct {
		URL string `json:"url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload sends the photo as multipart field "image" and returns the hosted URL.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	body, contentType, err := multipartBody(filename, data)
	if err != nil {
		return "", err
	}

	endpoint, err := url.Parse(c.uploadURL)
	if err != nil {
		return "", fmt.Errorf("parse upload url: %w", err)
	}
	q := endpoint.Query()
	q.Set("key", c.apiKey)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "Petlink/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		// The key is in the URL; drop it from the error.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return "", fmt.Errorf("upload image: %w", err)
	}
	defer resp.Body.Close()

	var parsed uploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: status %d: decode response: %v", ErrUploadRejected, resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || !parsed.Success || parsed.Data.URL == "" {
		msg := parsed.Error.Message
		if msg == "" {
			msg = "no url in response"
		}
		return "", fmt.Errorf("%w: status %d: %s", ErrUploadRejected, resp.StatusCode, msg)
	}

	return parsed.Data.URL, nil
}

func multipartBody(filename string, data []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if filename == "" {
		filename = "pet.jpg"
	}
	part, err := w.CreateFormFile("image", filepath.Base(filename))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write image: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}
