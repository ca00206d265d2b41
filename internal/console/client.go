// Package console is the admin-side client of the payout approval workflow:
// the approval engine, the listing view, the action modal and the stats
// aggregator. It talks to the admin API over HTTP and owns no records.
package console

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"holidaysri-admin/pkg/payoutapi"

	"github.com/go-resty/resty/v2"
)

// Session carries the admin's credentials. It is injected, never looked up.
type Session interface {
	Token() string
	// SignOut is called when the backend rejects the token
	SignOut()
}

// TokenSession is a Session holding one bearer token in memory
type TokenSession struct {
	mu    sync.RWMutex
	token string
}

func NewTokenSession(token string) *TokenSession {
	return &TokenSession{token: token}
}

func (s *TokenSession) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *TokenSession) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *TokenSession) SignOut() { s.SetToken("") }

// IsAuthenticated reports whether a token is held
func (s *TokenSession) IsAuthenticated() bool { return s.Token() != "" }

// Client is the REST client shared by every console component
type Client struct {
	rest    *resty.Client
	session Session
}

// NewClient creates a client for the admin API at baseURL
func NewClient(baseURL string, session Session) *Client {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json")
	return &Client{rest: rest, session: session}
}

// Login exchanges credentials for a token and stores it when the session is
// a TokenSession
func (c *Client) Login(ctx context.Context, email, password string) (*payoutapi.LoginResult, error) {
	res, err := call[payoutapi.LoginResult](ctx, c, http.MethodPost, "/auth/login", nil,
		payoutapi.LoginBody{Email: email, Password: password}, "Failed to sign in")
	if err != nil {
		return nil, err
	}
	if ts, ok := c.session.(*TokenSession); ok {
		ts.SetToken(res.Token)
	}
	return &res, nil
}

// call issues one request and unwraps the response envelope. Failures come
// back as *ActionError; fallback is used when the server gave no message.
func call[T any](
	ctx context.Context,
	c *Client,
	method, path string,
	params url.Values,
	body interface{},
	fallback string,
) (T, error) {
	var (
		zero T
		ok   payoutapi.Envelope[T]
		fail payoutapi.Envelope[json.RawMessage]
	)

	req := c.rest.R().SetContext(ctx).SetResult(&ok).SetError(&fail)
	if token := c.session.Token(); token != "" {
		req.SetAuthToken(token)
	}
	if params != nil {
		req.SetQueryParamsFromValues(params)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return zero, &ActionError{Kind: KindTransport, Message: transportMessage, Err: err}
	}

	if resp.IsError() {
		ae := &ActionError{Kind: KindServer, Status: resp.StatusCode(), Message: fallback}
		if fail.Error != nil {
			ae.Code = fail.Error.Code
			if fail.Error.Message != "" {
				ae.Message = fail.Error.Message
			}
		}
		if resp.StatusCode() == http.StatusUnauthorized {
			ae.Err = ErrUnauthorized
			c.session.SignOut()
		}
		return zero, ae
	}
	return ok.Data, nil
}
