package rewardvault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// Client talks to the reward-custody service over HTTP. It implements the
// engine's RewardDistributor interface: the call either succeeds as a whole or
// fails as a whole, the response body is not consulted beyond the status.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient builds a client for the given base endpoint.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		http:     &http.Client{Timeout: defaultTimeout},
	}
}

type distributeRequest struct {
	IDs     []uint64 `json:"ids"`
	Amounts []string `json:"amounts"`
}

// DistributeRewards forwards the per-unit reward breakdown to the custody
// service.
func (c *Client) DistributeRewards(ids []uint64, amounts []*big.Int) error {
	if c == nil || c.endpoint == "" {
		return fmt.Errorf("rewardvault: client not configured")
	}
	if len(ids) != len(amounts) {
		return fmt.Errorf("rewardvault: ids and amounts must be parallel")
	}
	payload := distributeRequest{IDs: ids, Amounts: make([]string, 0, len(amounts))}
	for _, amount := range amounts {
		if amount == nil {
			return fmt.Errorf("rewardvault: nil amount")
		}
		payload.Amounts = append(payload.Amounts, amount.String())
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/rewards/distribute", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rewardvault: distribute: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("rewardvault: distribute returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
