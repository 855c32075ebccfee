// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package client provides an HTTP client for the registry API. It covers
// the read surface, the mutating surface and the websocket change-nonce
// subscription.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/mvp1983/lido-dao/builtin/registry"
	"github.com/mvp1983/lido-dao/eventdb"
	"github.com/mvp1983/lido-dao/lido"
)

// Client talks to one registry API endpoint.
type Client struct {
	url string
	c   *http.Client
}

// New creates a new Client with the provided URL.
func New(url string) *Client {
	return NewWithHTTP(url, http.DefaultClient)
}

// NewWithHTTP creates a new Client using a custom http client.
func NewWithHTTP(url string, c *http.Client) *Client {
	return &Client{
		url: strings.TrimSuffix(url, "/"),
		c:   c,
	}
}

type apiError struct {
	Message string `json:"error"`
}

func (c *Client) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.url+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Message, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) get(path string, out any) error {
	return c.do(http.MethodGet, path, nil, out)
}

// Operator fetches one operator record.
func (c *Client) Operator(id registry.ID, full bool) (*registry.OperatorInfo, error) {
	var info registry.OperatorInfo
	path := fmt.Sprintf("/operators/%d?full=%t", id, full)
	if err := c.get(path, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Operators fetches all operator records.
func (c *Client) Operators(full bool) ([]*registry.OperatorInfo, error) {
	var operators []*registry.OperatorInfo
	if err := c.get(fmt.Sprintf("/operators?full=%t", full), &operators); err != nil {
		return nil, err
	}
	return operators, nil
}

// AddOperator registers a new operator and returns its id.
func (c *Client) AddOperator(caller lido.Address, name string, rewardAddress lido.Address) (registry.ID, error) {
	var created struct {
		ID registry.ID `json:"id"`
	}
	err := c.do(http.MethodPost, "/operators", map[string]any{
		"caller":        caller.String(),
		"name":          name,
		"rewardAddress": rewardAddress.String(),
	}, &created)
	return created.ID, err
}

// SetActive toggles the active flag of an operator.
func (c *Client) SetActive(caller lido.Address, id registry.ID, active bool) error {
	return c.do(http.MethodPut, fmt.Sprintf("/operators/%d/active", id), map[string]any{
		"caller": caller.String(),
		"active": active,
	}, nil)
}

// SetVettedCount approves keys for deposit up to count.
func (c *Client) SetVettedCount(caller lido.Address, id registry.ID, count uint64) error {
	return c.do(http.MethodPut, fmt.Sprintf("/operators/%d/vetted-count", id), map[string]any{
		"caller": caller.String(),
		"count":  count,
	}, nil)
}

// ReportExited reports the exited validator count of an operator.
func (c *Client) ReportExited(caller lido.Address, id registry.ID, count uint64) error {
	return c.do(http.MethodPut, fmt.Sprintf("/operators/%d/exited-count", id), map[string]any{
		"caller": caller.String(),
		"count":  count,
	}, nil)
}

// UnsafeReportExited corrects the exited count of an operator, allowing
// decreases the validated path refuses.
func (c *Client) UnsafeReportExited(caller lido.Address, id registry.ID, count uint64) error {
	return c.do(http.MethodPut, fmt.Sprintf("/operators/%d/exited-count/unsafe", id), map[string]any{
		"caller": caller.String(),
		"count":  count,
	}, nil)
}

// AddKeys appends signing keys from concatenated blobs.
func (c *Client) AddKeys(caller lido.Address, id registry.ID, count uint64, pubkeys, signatures []byte) error {
	return c.do(http.MethodPost, fmt.Sprintf("/operators/%d/keys", id), map[string]any{
		"caller":     caller.String(),
		"count":      count,
		"pubkeys":    hexutil.Bytes(pubkeys),
		"signatures": hexutil.Bytes(signatures),
	}, nil)
}

// Keys fetches limit key slots of an operator starting at offset.
func (c *Client) Keys(id registry.ID, offset, limit uint64) (pubkeys, signatures []byte, used []bool, err error) {
	var out struct {
		Pubkeys    hexutil.Bytes `json:"pubkeys"`
		Signatures hexutil.Bytes `json:"signatures"`
		Used       []bool        `json:"used"`
	}
	path := fmt.Sprintf("/operators/%d/keys?offset=%d&limit=%d", id, offset, limit)
	if err := c.get(path, &out); err != nil {
		return nil, nil, nil, err
	}
	return out.Pubkeys, out.Signatures, out.Used, nil
}

// RequestDeposits asks for up to count deposit allocations.
func (c *Client) RequestDeposits(caller lido.Address, count uint64) (allocated uint64, pubkeys, signatures []byte, err error) {
	var out struct {
		Allocated  uint64        `json:"allocated"`
		Pubkeys    hexutil.Bytes `json:"pubkeys"`
		Signatures hexutil.Bytes `json:"signatures"`
	}
	err = c.do(http.MethodPost, "/deposits", map[string]any{
		"caller": caller.String(),
		"count":  count,
	}, &out)
	if err != nil {
		return 0, nil, nil, err
	}
	return out.Allocated, out.Pubkeys, out.Signatures, nil
}

// ChangeNonce fetches the current change nonce.
func (c *Client) ChangeNonce() (uint64, error) {
	var out struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := c.get("/registry/nonce", &out); err != nil {
		return 0, err
	}
	return out.Nonce, nil
}

// GlobalStats fetches the registry-wide validator totals.
func (c *Client) GlobalStats() (*registry.Stats, error) {
	var stats registry.Stats
	if err := c.get("/registry/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Events queries the persisted event log.
func (c *Client) Events(filter *eventdb.Filter) ([]*eventdb.StoredEvent, error) {
	path := "/events?limit=" + strconv.FormatUint(filter.Limit, 10) +
		"&offset=" + strconv.FormatUint(filter.Offset, 10)
	if filter.Name != "" {
		path += "&name=" + filter.Name
	}
	if filter.Operator != nil {
		path += "&operator=" + strconv.FormatUint(uint64(*filter.Operator), 10)
	}
	var events []*eventdb.StoredEvent
	if err := c.get(path, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// SubscribeNonce opens the websocket change-nonce feed. Received values
// are delivered on the returned channel until ctx is cancelled or the
// connection drops; the channel is closed afterwards.
func (c *Client) SubscribeNonce(ctx context.Context) (<-chan uint64, error) {
	wsURL := strings.Replace(c.url, "http", "ws", 1) + "/subscriptions/nonce"
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "dial nonce subscription")
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	ch := make(chan uint64)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(ch)
		defer conn.Close()
		for {
			var msg struct {
				Nonce uint64 `json:"nonce"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case ch <- msg.Nonce:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
