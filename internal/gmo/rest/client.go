package rest

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	orderPath      = "/v1/order"
	cancelBulkPath = "/v1/cancelBulkOrder"

	ExecutionLimit = "LIMIT"
	// TifSOK is GMO's post-only time in force: the order is cancelled instead of taking liquidity.
	TifSOK = "SOK"
)

var ErrAPI = errors.New("gmo api error")

type Message struct {
	Code string `json:"message_code"`
	Text string `json:"message_string"`
}

type APIError struct {
	HTTPStatus int
	Status     int
	Messages   []Message
}

func (e *APIError) Error() string {
	parts := make([]string, 0, len(e.Messages))
	for _, msg := range e.Messages {
		parts = append(parts, strings.TrimSpace(msg.Code+" "+msg.Text))
	}
	return fmt.Sprintf("gmo api status %d (http %d): %s", e.Status, e.HTTPStatus, strings.Join(parts, "; "))
}

func (e *APIError) Unwrap() error {
	return ErrAPI
}

type OrderRequest struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	ExecutionType string `json:"executionType"`
	TimeInForce   string `json:"timeInForce,omitempty"`
	Price         string `json:"price,omitempty"`
	Size          string `json:"size"`
}

type cancelBulkRequest struct {
	Symbols []string `json:"symbols"`
}

type envelope struct {
	Status   int             `json:"status"`
	Data     json.RawMessage `json:"data"`
	Messages []Message       `json:"messages"`
}

// Client talks to the private REST API with HMAC-SHA256 signed requests.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
	log       *zap.Logger
	lastStamp atomic.Int64
	now       func() time.Time
}

func New(baseURL string, timeout time.Duration, apiKey, apiSecret string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http: &http.Client{
			Timeout: timeout,
		},
		log: log,
		now: time.Now,
	}
}

// PlaceOrder submits an order and returns the venue order id.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	var data json.RawMessage
	if err := c.post(ctx, orderPath, req, &data); err != nil {
		return "", err
	}
	id := orderIDFromData(data)
	if id == "" {
		return "", fmt.Errorf("order response missing id: %s", string(data))
	}
	return id, nil
}

// CancelBulk cancels every resting order of the given symbols and returns the cancelled ids.
func (c *Client) CancelBulk(ctx context.Context, symbols []string) ([]string, error) {
	if len(symbols) == 0 {
		return nil, errors.New("at least one symbol is required")
	}
	var data json.RawMessage
	if err := c.post(ctx, cancelBulkPath, cancelBulkRequest{Symbols: symbols}, &data); err != nil {
		return nil, err
	}
	var raw []json.Number
	if len(data) > 0 && string(data) != "null" {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode cancel response: %w", err)
		}
	}
	ids := make([]string, 0, len(raw))
	for _, n := range raw {
		ids = append(ids, n.String())
	}
	return ids, nil
}

func (c *Client) post(ctx context.Context, path string, req any, out *json.RawMessage) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	stamp := strconv.FormatInt(c.nextTimestamp(), 10)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("API-KEY", c.apiKey)
	httpReq.Header.Set("API-TIMESTAMP", stamp)
	httpReq.Header.Set("API-SIGN", Sign(c.apiSecret, stamp, http.MethodPost, path, body))
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("http %d: %s", resp.StatusCode, truncate(payload, 2048))
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Status != 0 || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{HTTPStatus: resp.StatusCode, Status: env.Status, Messages: env.Messages}
	}
	*out = env.Data
	return nil
}

// Sign returns hex(HMAC-SHA256(secret, timestamp+method+path+body)).
func Sign(secret, timestamp, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + method + path))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// nextTimestamp returns a strictly increasing millisecond timestamp.
func (c *Client) nextTimestamp() int64 {
	now := c.now().UnixMilli()
	for {
		prev := c.lastStamp.Load()
		next := now
		if prev >= next {
			next = prev + 1
		}
		if c.lastStamp.CompareAndSwap(prev, next) {
			return next
		}
	}
}

func orderIDFromData(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return n.String()
	}
	return ""
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
