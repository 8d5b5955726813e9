package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	defaultBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"
	sheetsScope    = "https://www.googleapis.com/auth/spreadsheets"
)

// HTTPDoer is the subset of http.Client the sheets client needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Google Sheets v4 values API.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a client authenticated with a service-account key file.
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	cfg, err := google.JWTConfigFromJSON(data, sheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: oauth2.NewClient(ctx, cfg.TokenSource(ctx)),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client HTTPDoer) {
	c.httpClient = client
}

type valueRange struct {
	Range  string  `json:"range,omitempty"`
	Values [][]any `json:"values,omitempty"`
}

// Values reads a range and returns its rows as strings. Trailing empty
// cells may be absent from a row; callers must bounds-check columns.
func (c *Client) Values(ctx context.Context, spreadsheetID, readRange string) ([][]string, error) {
	path := fmt.Sprintf("/%s/values/%s", url.PathEscape(spreadsheetID), url.PathEscape(readRange))
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var vr valueRange
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, fmt.Errorf("decoding values response: %w", err)
	}

	rows := make([][]string, len(vr.Values))
	for i, raw := range vr.Values {
		row := make([]string, len(raw))
		for j, v := range raw {
			row[j] = cellString(v)
		}
		rows[i] = row
	}
	return rows, nil
}

// Update writes values to a range with RAW input semantics.
func (c *Client) Update(ctx context.Context, spreadsheetID, writeRange string, values [][]string) error {
	path := fmt.Sprintf("/%s/values/%s?valueInputOption=RAW",
		url.PathEscape(spreadsheetID), url.PathEscape(writeRange))

	payload := struct {
		Values [][]string `json:"values"`
	}{Values: values}

	if _, err := c.doRequest(ctx, http.MethodPut, path, payload); err != nil {
		return err
	}
	return nil
}

// doRequest performs a request against the values API and returns the
// response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sheets request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sheets API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func cellString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// ColumnIndex converts a column letter ("A", "M", "AA") to a 0-based index.
func ColumnIndex(letter string) (int, error) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if letter == "" {
		return 0, fmt.Errorf("empty column letter")
	}
	n := 0
	for _, r := range letter {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid column letter %q", letter)
		}
		n = n*26 + int(r-'A') + 1
	}
	return n - 1, nil
}

// SheetName extracts the sheet-name prefix from an A1 range like
// "'Data'!A1:Z" or "Data!A1:Z". Ranges without a prefix return "".
func SheetName(a1Range string) string {
	i := strings.Index(a1Range, "!")
	if i < 0 {
		return ""
	}
	return strings.Trim(a1Range[:i], "'")
}
