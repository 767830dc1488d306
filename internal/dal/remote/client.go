package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/errs"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/conversation"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/order"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/orderitem"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/role"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/session"
)

// Client is the REST client for the marketplace API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *session.Session
	timeout    time.Duration
}

// option is a function that configures the Client.
type option func(*Client)

// MustNewClient creates a new marketplace API client.
func MustNewClient(opts ...option) *Client {
	timeout := viper.GetInt("remote.timeout_seconds")
	if timeout == 0 {
		timeout = 15
	}

	c := &Client{
		baseURL:    strings.TrimRight(viper.GetString("remote.base_url"), "/"),
		httpClient: &http.Client{},
		timeout:    time.Duration(timeout) * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.baseURL == "" {
		panic("remote.base_url is not set in config")
	}

	slog.Info("Marketplace API client configured", "base_url", c.baseURL, "timeout", c.timeout)

	return c
}

// WithBaseURL overrides remote.base_url.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithBaseURL(baseURL string) option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithSession sets the session whose bearer token authenticates requests.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithSession(sess *session.Session) option {
	return func(c *Client) {
		c.session = sess
	}
}

// WithHTTPClient replaces the underlying HTTP client.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithHTTPClient(httpClient *http.Client) option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds every request.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithTimeout(timeout time.Duration) option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// FetchOrdersForSeller returns the orders visible to the session.
// The endpoint depends on the session role; farmers receive only their own items.
func (c *Client) FetchOrdersForSeller(ctx context.Context, sellerID int64) ([]order.Order, error) {
	ctx, span := otel.Tracer("http-client").Start(ctx, "Client.FetchOrdersForSeller")
	defer span.End()

	path := "/api/orders/farmer"
	if c.session != nil {
		switch c.session.Role {
		case role.Buyer:
			path = "/api/orders/buyer"
		case role.Admin:
			path = "/api/orders"
		}
	}
	span.SetAttributes(attribute.String("path", path))

	var resp ordersResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		span.RecordError(err)

		return nil, err
	}

	orders := make([]order.Order, 0, len(resp.Orders))
	for _, dto := range resp.Orders {
		orders = append(orders, dto.toModel(sellerID))
	}

	return orders, nil
}

// UpdateItemStatus asks the API to move an item to status.
func (c *Client) UpdateItemStatus(ctx context.Context, itemID int64, status orderitem.Status) error {
	ctx, span := otel.Tracer("http-client").Start(ctx, "Client.UpdateItemStatus")
	defer span.End()

	span.SetAttributes(attribute.Int64("item_id", itemID), attribute.String("status", status.String()))

	path := "/api/orders/item/" + strconv.FormatInt(itemID, 10) + "/status"
	if err := c.do(ctx, http.MethodPut, path, updateStatusRequest{Status: status.String()}, nil); err != nil {
		span.RecordError(err)

		return err
	}

	return nil
}

// FetchConversations returns the conversation list of the session account.
func (c *Client) FetchConversations(ctx context.Context, _ int64) ([]conversation.Summary, error) {
	ctx, span := otel.Tracer("http-client").Start(ctx, "Client.FetchConversations")
	defer span.End()

	var resp conversationsResponse
	if err := c.do(ctx, http.MethodGet, "/api/chats/conversations", nil, &resp); err != nil {
		span.RecordError(err)

		return nil, err
	}

	summaries := make([]conversation.Summary, 0, len(resp.Conversations))
	for _, dto := range resp.Conversations {
		summaries = append(summaries, dto.toModel())
	}

	return summaries, nil
}

// FetchThread returns the full history with one counterpart.
// The API marks the counterpart's messages as read as a side effect.
func (c *Client) FetchThread(ctx context.Context, counterpartID int64) (conversation.Thread, error) {
	ctx, span := otel.Tracer("http-client").Start(ctx, "Client.FetchThread")
	defer span.End()

	span.SetAttributes(attribute.Int64("counterpart_id", counterpartID))

	var resp threadResponse
	if err := c.do(ctx, http.MethodGet, "/api/chats/"+strconv.FormatInt(counterpartID, 10), nil, &resp); err != nil {
		span.RecordError(err)

		return conversation.Thread{}, err
	}

	thread := conversation.Thread{
		Counterpart: resp.OtherUser.toModel(),
		Messages:    make([]conversation.Message, 0, len(resp.Messages)),
	}
	for _, dto := range resp.Messages {
		thread.Messages = append(thread.Messages, dto.toModel())
	}

	return thread, nil
}

// SendMessage sends a message and returns it as stored.
func (c *Client) SendMessage(ctx context.Context, receiverID int64, body string) (conversation.Message, error) {
	ctx, span := otel.Tracer("http-client").Start(ctx, "Client.SendMessage")
	defer span.End()

	span.SetAttributes(attribute.Int64("receiver_id", receiverID))

	var resp sendMessageResponse
	req := sendMessageRequest{ReceiverID: receiverID, Message: body}
	if err := c.do(ctx, http.MethodPost, "/api/chats/send", req, &resp); err != nil {
		span.RecordError(err)

		return conversation.Message{}, err
	}

	return resp.Chat.toModel(), nil
}

// do performs one request and maps the outcome onto the error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != nil && c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", errs.ErrNetworkFailure, method, path, err)
	}
	defer resp.Body.Close()

	slog.Debug("Remote call finished",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(started),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(method, path, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: reading %s %s: %w", errs.ErrNetworkFailure, method, path, err)
		}

		return fmt.Errorf("%w: malformed response from %s %s: %w", errs.ErrRemoteRejected, method, path, err)
	}

	return nil
}

func statusError(method, path string, resp *http.Response) error {
	var payload errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)

	msg := payload.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	var kind error
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = errs.ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		kind = errs.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		kind = errs.ErrNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		kind = errs.ErrNetworkFailure
	default:
		kind = errs.ErrRemoteRejected
	}

	return fmt.Errorf("%w: %s %s: %d %s", kind, method, path, resp.StatusCode, msg)
}
