// Package persist posts finished annotations to the save endpoint.
package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"polygon-annotator/pkg/geometry"
)

// SavePath is appended to the client's base URL.
const SavePath = "/save_annotation"

// DefaultTimeout bounds one save round trip.
const DefaultTimeout = 10 * time.Second

// maxResponse caps how much of a response body is read.
const maxResponse = 1 << 20

var ErrNoBaseURL = errors.New("no save URL configured")

// Payload is the JSON body of a save request.
type Payload struct {
	ImageName   string             `json:"image_name"`
	Annotations []geometry.Point2D `json:"annotations"`
}

// Result is delivered once per save.
type Result struct {
	Message string
	Err     error
}

// ServerError is a non-2xx response.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("save failed: HTTP %d", e.Status)
	}
	return fmt.Sprintf("save failed: HTTP %d: %s", e.Status, e.Message)
}

type response struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Client talks to one persistence endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for baseURL. A non-positive timeout uses
// DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the endpoint base.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Save posts p and returns the server's message. It is never retried.
func (c *Client) Save(ctx context.Context, p Payload) (string, error) {
	if c.baseURL == "" {
		return "", ErrNoBaseURL
	}
	if p.Annotations == nil {
		p.Annotations = []geometry.Point2D{}
	}

	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+SavePath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", SavePath, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var r response
	decodeErr := json.Unmarshal(raw, &r)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := r.Error
		if msg == "" {
			msg = r.Message
		}
		if msg == "" && decodeErr != nil {
			msg = strings.TrimSpace(string(raw))
		}
		return "", &ServerError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode response: %w", decodeErr)
	}
	return r.Message, nil
}

// SaveAsync runs Save on its own goroutine. done is invoked through deliver
// so the caller can hop back onto its main thread; a nil deliver calls done
// directly from the goroutine.
func (c *Client) SaveAsync(ctx context.Context, p Payload, deliver func(func()), done func(Result)) {
	snapshot := Payload{
		ImageName:   p.ImageName,
		Annotations: append([]geometry.Point2D(nil), p.Annotations...),
	}
	go func() {
		start := time.Now()
		msg, err := c.Save(ctx, snapshot)
		if err != nil {
			log.Printf("Save: %s failed after %v: %v", snapshot.ImageName, time.Since(start), err)
		} else {
			log.Printf("Save: %s (%d points) in %v", snapshot.ImageName, len(snapshot.Annotations), time.Since(start))
		}
		if done == nil {
			return
		}
		res := Result{Message: msg, Err: err}
		if deliver == nil {
			done(res)
			return
		}
		deliver(func() { done(res) })
	}()
}
