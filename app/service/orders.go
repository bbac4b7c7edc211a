package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OrderNotifier tells the order system that an order has been paid. The call
// sits behind the exactly-once attempt gate, so implementations may be plain
// fire-and-forget HTTP.
type OrderNotifier interface {
	MarkOrderPaid(ctx context.Context, orderID string) error
}

type HTTPOrderNotifier struct {
	baseURL string
	client  *http.Client
}

func NewHTTPOrderNotifier(baseURL string, timeout time.Duration) *HTTPOrderNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPOrderNotifier{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (n *HTTPOrderNotifier) MarkOrderPaid(ctx context.Context, orderID string) error {
	if n.baseURL == "" {
		return nil
	}

	endpoint := n.baseURL + "/internal/orders/" + url.PathEscape(orderID) + "/paid"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("order endpoint returned status=%d", resp.StatusCode)
	}
	return nil
}
