package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable is returned without touching the network while the
// circuit breaker is open. It still counts as a single failed attempt for
// the recipient being processed.
var ErrUnavailable = errors.New("gateway unavailable")

// Client talks to an Evolution API instance (WhatsApp transport).
type Client struct {
	baseURL  string
	apiKey   string
	instance string
	hc       *http.Client
	br       *MicroBreaker
}

func NewClient(baseURL, apiKey, instance string, timeoutMs, failThreshold, openForMs int) *Client {
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}
	if failThreshold <= 0 {
		failThreshold = 5
	}
	if openForMs <= 0 {
		openForMs = 30000
	}

	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		instance: instance,
		hc:       &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:       NewMicroBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

type sendTextReq struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendMediaReq struct {
	Number    string `json:"number"`
	MediaType string `json:"mediatype"`
	Media     string `json:"media"`
	Caption   string `json:"caption"`
}

// sendResp mirrors the Evolution API response; key.id is the transport
// message identifier recorded in the message log.
type sendResp struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
}

// SendText delivers a plain text message and returns the transport id.
func (c *Client) SendText(ctx context.Context, phone, text string) (string, error) {
	return c.send(ctx, "/message/sendText/"+c.instance, sendTextReq{Number: phone, Text: text})
}

// SendMedia delivers an image message with a caption and returns the
// transport id. mediaRef is a URL or data URI passed through as-is.
func (c *Client) SendMedia(ctx context.Context, phone, caption, mediaRef string) (string, error) {
	return c.send(ctx, "/message/sendMedia/"+c.instance, sendMediaReq{
		Number:    phone,
		MediaType: "image",
		Media:     mediaRef,
		Caption:   caption,
	})
}

func (c *Client) send(ctx context.Context, path string, payload any) (string, error) {
	if !c.br.TryAcquire() {
		return "", ErrUnavailable
	}

	body, err := c.post(ctx, path, payload)
	if err != nil {
		c.br.OnFailure()
		return "", err
	}
	c.br.OnSuccess()

	var resp sendResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode gateway response: %w", err)
	}
	return resp.Key.ID, nil
}

type connectionStateResp struct {
	Instance struct {
		State string `json:"state"`
	} `json:"instance"`
}

// ConnectionState reports the instance connection state ("open" when the
// WhatsApp session is live).
func (c *Client) ConnectionState(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/instance/connectionState/"+c.instance, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("apikey", c.apiKey)

	res, err := c.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return "", fmt.Errorf("gateway status=%d", res.StatusCode)
	}

	var resp connectionStateResp
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("decode connection state: %w", err)
	}
	return resp.Instance.State, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("gateway path=%s status=%d", path, res.StatusCode)
	}

	return io.ReadAll(res.Body)
}
