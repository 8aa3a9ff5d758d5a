package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dghubble/oauth1"
)

// Credentials agrupa as credenciais da API do Twitter.
// A busca de menções usa o bearer token (app-only); postar a resposta exige
// contexto de usuário, assinado com OAuth 1.0a.
type Credentials struct {
	BearerToken  string
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
}

// Client é um cliente fino da API v2 do Twitter
type Client struct {
	BaseURL string

	httpApp  *http.Client // bearer (busca)
	httpUser *http.Client // oauth1 (postagem, /users/me)
	bearer   string
}

func New(baseURL string, creds Credentials) *Client {
	oaCfg := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)

	httpUser := oaCfg.Client(oauth1.NoContext, token)
	httpUser.Timeout = 10 * time.Second

	return &Client{
		BaseURL:  baseURL,
		httpApp:  &http.Client{Timeout: 10 * time.Second},
		httpUser: httpUser,
		bearer:   creds.BearerToken,
	}
}

// Me valida as credenciais de usuário e retorna o username autenticado.
// Chamado no startup dos workers: falha aqui é fatal antes de qualquer tick.
func (c *Client) Me(ctx context.Context) (string, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/2/users/me", nil)

	res, err := c.httpUser.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return "", apiError("users/me", res)
	}

	var out meResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Data.Username, nil
}

// SearchRecentMentions busca os tweets recentes que casam com a query.
// sinceID vazio busca a janela completa; o retorno inclui o newest_id pra
// servir de cursor da próxima busca.
func (c *Client) SearchRecentMentions(ctx context.Context, query, sinceID string) ([]Tweet, string, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("max_results", "100")
	if sinceID != "" {
		q.Set("since_id", sinceID)
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/2/tweets/search/recent?"+q.Encode(), nil)
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	res, err := c.httpApp.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return nil, "", apiError("search/recent", res)
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, "", err
	}
	return out.Data, out.Meta.NewestID, nil
}

// Reply publica uma resposta ao tweet informado e retorna o id do post criado
func (c *Client) Reply(ctx context.Context, tweetID, text string) (string, error) {
	payload := postTweetRequest{Text: text}
	payload.Reply = &struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	}{InReplyToTweetID: tweetID}

	body, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/2/tweets", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpUser.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return "", apiError("tweets", res)
	}

	var out postTweetResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Data.ID, nil
}

func apiError(op string, res *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	return fmt.Errorf("twitter %s http %d: %s", op, res.StatusCode, bytes.TrimSpace(detail))
}
