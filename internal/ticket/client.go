package ticket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

var ErrNotFound = errors.New("ticket not found")

// Ticket 活动服务返回的票务信息
type Ticket struct {
	ID       int64  `json:"id"`
	EventID  string `json:"event_id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity *int   `json:"quantity,omitempty"` // 剩余库存，可能不返回
	SoldOut  bool   `json:"sold_out"`
}

// IsSoldOut 兼容只返回库存数量的实现
func (t *Ticket) IsSoldOut() bool {
	return t.SoldOut || (t.Quantity != nil && *t.Quantity <= 0)
}

// Client 活动服务的票务接口，库存扣减由对方原子完成
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ticket base url: %w", err)
	}
	return &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// GetTicket GET /api/tickets/{id}
func (c *Client) GetTicket(ctx context.Context, id int64) (*Ticket, error) {
	return c.do(ctx, http.MethodGet, c.baseURL.JoinPath("api/tickets", strconv.FormatInt(id, 10)))
}

// PurchaseTicket POST /api/tickets/{id}/purchase
func (c *Client) PurchaseTicket(ctx context.Context, id int64) (*Ticket, error) {
	return c.do(ctx, http.MethodPost, c.baseURL.JoinPath("api/tickets", strconv.FormatInt(id, 10), "purchase"))
}

func (c *Client) do(ctx context.Context, method string, u *url.URL) (*Ticket, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, u.Path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s %s: status %d: %s", method, u.Path, resp.StatusCode, string(body))
	}

	var t Ticket
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode ticket: %w", err)
	}
	return &t, nil
}
