// Package authprovider is a client for a GoTrue compatible auth server (ex. Supabase Auth).
// Credentials never touch this service's storage, they are forwarded to the provider.
package authprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"dlstracker-backend/internal/components/assert"
	"dlstracker-backend/internal/components/telemetry"
	libtelemetry "dlstracker-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_sign_up  = "client.sign-up"
	report_client_sign_in  = "client.sign-in"
	report_client_sign_out = "client.sign-out"
	report_client_user     = "client.user"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRejected           = errors.New("rejected by auth provider")
)

type User struct {
	ID       string
	Email    string
	FullName string
	TeamID   string
}

type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	User         User
}

type Config struct {
	// BaseURL is the project url, ex. https://xyz.supabase.co
	BaseURL string `json:"url"`
	// APIKey is the public anon key sent with every request.
	APIKey string `json:"api_key"`
	// RequestsPerSecond limits outbound requests, 0 means 5.
	RequestsPerSecond float64 `json:"requests_per_second"`
}

type Client struct {
	http *resty.Client
	tel  telemetry.API
}

func NewClient(config Config, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("auth_provider", tel)

	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, err
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("auth provider url must be absolute: %q", config.BaseURL)
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(base.String())
	httpClient.SetHeader("apikey", config.APIKey)
	httpClient.SetTimeout(time.Second * 15)

	limit := config.RequestsPerSecond
	if limit <= 0 {
		limit = 5
	}
	// burst >= 1 just means that no requests will be dropped
	rateLimiter := rate.NewLimiter(rate.Limit(limit), max(1, int(limit)))
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel)
	libtelemetry.TraceResty(httpClient, "dlstracker.authprovider")

	return &Client{http: httpClient, tel: tel}, nil
}

type userMetadata struct {
	FullName string `json:"full_name,omitempty"`
	TeamID   string `json:"team_id,omitempty"`
}

type userResponse struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	UserMetadata userMetadata `json:"user_metadata"`
}

func (u userResponse) user() User {
	return User{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.UserMetadata.FullName,
		TeamID:   u.UserMetadata.TeamID,
	}
}

type errorResponse struct {
	Message          string `json:"msg"`
	ErrorDescription string `json:"error_description"`
	Error            string `json:"error"`
}

func (e *errorResponse) String() string {
	switch {
	case e == nil:
		return ""
	case e.Message != "":
		return e.Message
	case e.ErrorDescription != "":
		return e.ErrorDescription
	}
	return e.Error
}

func providerError(res *resty.Response, sentinel error) error {
	detail, _ := res.Error().(*errorResponse)
	message := detail.String()
	if message == "" {
		message = res.Status()
	}
	return fmt.Errorf("%w: %s", sentinel, message)
}

type SignUpParams struct {
	Email    string
	Password string
	FullName string
	TeamID   string
}

// SignUp registers a new user, the full name and team id are kept as user metadata.
func (c *Client) SignUp(ctx context.Context, params SignUpParams) (User, error) {
	var out struct {
		userResponse
		// when email confirmation is off the provider wraps the user in a session
		User *userResponse `json:"user"`
	}
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"email":    params.Email,
			"password": params.Password,
			"data": userMetadata{
				FullName: params.FullName,
				TeamID:   params.TeamID,
			},
		}).
		SetResult(&out).
		SetError(&errorResponse{}).
		Post("/auth/v1/signup")
	if err != nil {
		c.tel.ReportBroken(report_client_sign_up, err)
		return User{}, err
	}
	if res.IsError() {
		return User{}, providerError(res, ErrRejected)
	}
	if out.User != nil {
		return out.User.user(), nil
	}
	return out.userResponse.user(), nil
}

// SignIn exchanges an email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	var out struct {
		AccessToken  string       `json:"access_token"`
		RefreshToken string       `json:"refresh_token"`
		ExpiresIn    int64        `json:"expires_in"`
		User         userResponse `json:"user"`
	}
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{
			"email":    email,
			"password": password,
		}).
		SetResult(&out).
		SetError(&errorResponse{}).
		Post("/auth/v1/token")
	if err != nil {
		c.tel.ReportBroken(report_client_sign_in, err)
		return Session{}, err
	}
	switch {
	case res.StatusCode() == http.StatusBadRequest || res.StatusCode() == http.StatusUnauthorized:
		return Session{}, providerError(res, ErrInvalidCredentials)
	case res.IsError():
		c.tel.ReportWarning(report_client_sign_in, res.Status())
		return Session{}, providerError(res, ErrRejected)
	}
	if out.AccessToken == "" {
		err := fmt.Errorf("%w: no access token in response", ErrRejected)
		c.tel.ReportBroken(report_client_sign_in, err)
		return Session{}, err
	}
	return Session{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    time.Duration(out.ExpiresIn) * time.Second,
		User:         out.User.user(),
	}, nil
}

// SignOut revokes the session of accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetError(&errorResponse{}).
		Post("/auth/v1/logout")
	if err != nil {
		c.tel.ReportBroken(report_client_sign_out, err)
		return err
	}
	if res.StatusCode() == http.StatusUnauthorized || res.StatusCode() == http.StatusForbidden {
		return providerError(res, ErrUnauthorized)
	}
	if res.IsError() {
		return providerError(res, ErrRejected)
	}
	return nil
}

// User verifies accessToken and returns who it belongs to.
func (c *Client) User(ctx context.Context, accessToken string) (User, error) {
	if accessToken == "" {
		return User{}, ErrUnauthorized
	}
	var out userResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&out).
		SetError(&errorResponse{}).
		Get("/auth/v1/user")
	if err != nil {
		c.tel.ReportBroken(report_client_user, err)
		return User{}, err
	}
	if res.StatusCode() == http.StatusUnauthorized || res.StatusCode() == http.StatusForbidden {
		return User{}, providerError(res, ErrUnauthorized)
	}
	if res.IsError() {
		c.tel.ReportWarning(report_client_user, res.Status())
		return User{}, providerError(res, ErrRejected)
	}
	return out.user(), nil
}
