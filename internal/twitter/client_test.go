package twitter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testCreds() Credentials {
	return Credentials{
		BearerToken:  "bearer-token",
		APIKey:       "key",
		APISecret:    "secret",
		AccessToken:  "access",
		AccessSecret: "access-secret",
	}
}

func TestSearchRecentMentions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/tweets/search/recent" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer bearer-token" {
			t.Errorf("authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("query") != "@robet_ai" {
			t.Errorf("query = %q", q.Get("query"))
		}
		if q.Get("since_id") != "100" {
			t.Errorf("since_id = %q", q.Get("since_id"))
		}
		if q.Get("max_results") != "100" {
			t.Errorf("max_results = %q", q.Get("max_results"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"id": "101", "text": "ROBET https://x.com/y Will it rain?"},
				{"id": "102", "text": "hello"},
			},
			"meta": map[string]any{"newest_id": "102", "result_count": 2},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, testCreds())
	tweets, newest, err := c.SearchRecentMentions(context.Background(), "@robet_ai", "100")
	if err != nil {
		t.Fatal(err)
	}
	if len(tweets) != 2 {
		t.Fatalf("tweets = %d, want 2", len(tweets))
	}
	if tweets[0].ID != "101" {
		t.Errorf("first id = %q", tweets[0].ID)
	}
	if newest != "102" {
		t.Errorf("newest = %q, want 102", newest)
	}
}

func TestSearchOmitsEmptySinceID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.URL.Query()["since_id"]; ok {
			t.Error("since_id sent for empty cursor")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"meta": map[string]any{"result_count": 0}})
	}))
	defer srv.Close()

	c := New(srv.URL, testCreds())
	tweets, _, err := c.SearchRecentMentions(context.Background(), "@robet_ai", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(tweets) != 0 {
		t.Errorf("tweets = %d, want 0", len(tweets))
	}
}

func TestReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/tweets" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		// postagem usa contexto de usuário: requisição precisa vir assinada
		if auth := r.Header.Get("Authorization"); !strings.HasPrefix(auth, "OAuth ") {
			t.Errorf("authorization = %q, want OAuth signature", auth)
		}
		var body struct {
			Text  string `json:"text"`
			Reply struct {
				InReplyToTweetID string `json:"in_reply_to_tweet_id"`
			} `json:"reply"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Reply.InReplyToTweetID != "tw1" {
			t.Errorf("in_reply_to = %q", body.Reply.InReplyToTweetID)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"id": "post-9", "text": body.Text},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, testCreds())
	postID, err := c.Reply(context.Background(), "tw1", "your bet is live")
	if err != nil {
		t.Fatal(err)
	}
	if postID != "post-9" {
		t.Errorf("postID = %q, want post-9", postID)
	}
}

func TestReplyHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"title":"Forbidden"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(srv.URL, testCreds())
	if _, err := c.Reply(context.Background(), "tw1", "text"); err == nil {
		t.Error("expected error on http 403")
	}
}

func TestMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/users/me" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"id": "1", "username": "robet_ai"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, testCreds())
	user, err := c.Me(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if user != "robet_ai" {
		t.Errorf("username = %q, want robet_ai", user)
	}
}
