// Package sheets appends rows to Google Sheets through the values:append
// endpoint of the Sheets REST API.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://sheets.googleapis.com/v4"

type Client struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client
}

func NewClient(accessToken string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:     defaultBaseURL,
		AccessToken: accessToken,
		HTTPClient:  &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx response from the Sheets API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sheets API error: status %d - %s", e.StatusCode, e.Body)
}

func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type appendRequest struct {
	Values [][]string `json:"values"`
}

// AppendRow appends one row to the named sheet of a spreadsheet.
func (c *Client) AppendRow(ctx context.Context, spreadsheetID, sheetName string, row []string) error {
	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s:append?valueInputOption=RAW",
		c.BaseURL, url.PathEscape(spreadsheetID), url.PathEscape(sheetName))

	jsonData, err := json.Marshal(appendRequest{Values: [][]string{row}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}
