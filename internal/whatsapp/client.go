// Package whatsapp is the outbound client for the WhatsApp Cloud API.
// Credentials are per device rather than process wide: each device row
// carries its own phone number id and access token.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storepulse/internal/models"
)

const defaultBaseURL = "https://graph.facebook.com/v19.0"

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx response from the Graph API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp API error: status %d - %s", e.StatusCode, e.Body)
}

// Temporary reports whether the call is worth retrying. Rate limits and
// server-side failures are; auth and validation failures are not.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type textMessage struct {
	MessagingProduct string  `json:"messaging_product"`
	To               string  `json:"to"`
	Type             string  `json:"type"`
	Text             textObj `json:"text"`
}

type textObj struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText delivers a text message through the given device and returns the
// provider message id.
func (c *Client) SendText(ctx context.Context, device *models.Device, to, body string) (string, error) {
	msg := textMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textObj{Body: body},
	}

	url := fmt.Sprintf("%s/%s/messages", c.BaseURL, device.PhoneNumberID)
	respBody, err := c.post(ctx, url, device.AccessToken, msg)
	if err != nil {
		return "", err
	}

	var resp sendResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decoding send response: %w", err)
	}
	if len(resp.Messages) == 0 {
		return "", nil
	}
	return resp.Messages[0].ID, nil
}

func (c *Client) post(ctx context.Context, url, token string, body interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
