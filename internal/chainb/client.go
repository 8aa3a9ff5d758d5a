package chainb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client fala com o bridge REST do contrato CosmWasm (Xion).
// Não faz retry: reprocessamento é responsabilidade do reconciler no próximo tick.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

type createBetRequest struct {
	Description string `json:"description"`
	EndTime     int64  `json:"endTime"` // epoch em milissegundos
}

type createBetResponse struct {
	Success         bool        `json:"success"`
	BetID           json.Number `json:"betId"`
	TransactionHash string      `json:"transactionHash"`
	Error           string      `json:"error,omitempty"`
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateMarket cria o mercado via POST /create-bet e retorna o id e o hash da
// transação reportados pelo bridge.
func (c *Client) CreateMarket(ctx context.Context, description string, endTime time.Time) (string, string, error) {
	body, _ := json.Marshal(createBetRequest{
		Description: description,
		EndTime:     endTime.UnixMilli(),
	})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/create-bet", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", "", err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return "", "", fmt.Errorf("chainb create-bet http %d", res.StatusCode)
	}

	var out createBetResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", "", err
	}
	if !out.Success {
		return "", "", fmt.Errorf("chainb create-bet rejected: %s", out.Error)
	}
	return out.BetID.String(), out.TransactionHash, nil
}
