package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid alias or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrUnauthorized       = errors.New("unauthorized")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Unwrap exposes the auth sentinel matching a 401 code.
func (e *APIError) Unwrap() error {
	if e.Status != http.StatusUnauthorized {
		return nil
	}
	switch e.Code {
	case "INVALID_CREDENTIALS":
		return ErrInvalidCredentials
	case "TOKEN_EXPIRED":
		return ErrExpiredToken
	case "INVALID_TOKEN":
		return ErrInvalidToken
	default:
		return ErrUnauthorized
	}
}

// RegisterRequest carries the registration form.
type RegisterRequest struct {
	Name     string  `json:"nombre"`
	Alias    string  `json:"alias"`
	Email    *string `json:"email"`
	Password string  `json:"contraseña"`
}

// Tokens is a fresh access/refresh pair.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type authData struct {
	User *User `json:"user"`
	Tokens
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
}

// API talks to the auth endpoints under /api/auth.
type API struct {
	baseURL string
	http    *http.Client
}

// NewAPI returns a client for baseURL (for example http://localhost:5000).
func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (a *API) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	var data authData
	if err := a.do(ctx, http.MethodPost, "/api/auth/register", "", req, &data); err != nil {
		return nil, err
	}
	return data.session()
}

func (a *API) Login(ctx context.Context, alias, password string) (*Session, error) {
	body := map[string]string{"alias": alias, "contraseña": password}
	var data authData
	if err := a.do(ctx, http.MethodPost, "/api/auth/login", "", body, &data); err != nil {
		return nil, err
	}
	return data.session()
}

// Me returns the user behind accessToken.
func (a *API) Me(ctx context.Context, accessToken string) (*User, error) {
	var user User
	if err := a.do(ctx, http.MethodGet, "/api/auth/me", accessToken, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Refresh exchanges refreshToken for a new pair. The old token stops working.
func (a *API) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	var tokens Tokens
	err := a.do(ctx, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": refreshToken}, &tokens)
	return tokens, err
}

func (a *API) Logout(ctx context.Context, accessToken, refreshToken string) error {
	var body any
	if refreshToken != "" {
		body = map[string]string{"refreshToken": refreshToken}
	}
	return a.do(ctx, http.MethodPost, "/api/auth/logout", accessToken, body, nil)
}

func (a *API) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode}
		}
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	if resp.StatusCode >= 300 || !env.Success {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s data: %w", path, err)
		}
	}
	return nil
}

func (d authData) session() (*Session, error) {
	if d.User == nil || d.AccessToken == "" {
		return nil, errors.New("incomplete auth response")
	}
	return &Session{User: *d.User, AccessToken: d.AccessToken, RefreshToken: d.RefreshToken}, nil
}
