// Package flash downloads statements from the Flash corporate card's private API.
//
// Logins run against the same AWS Cognito pool as the Flash web app: a
// username/password initiate-auth call, an SMS MFA challenge, then an employee
// sign-in that yields the API bearer token. A previously issued token can be
// supplied instead to skip the whole flow.
package flash

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/extrato-dev/extrato/client"
	sErrors "github.com/extrato-dev/extrato/errors"
	"github.com/extrato-dev/extrato/prompter"
	"github.com/extrato-dev/extrato/redactor"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	cognitoClientID  = "4r4ki1jqohppg2dko3uf7rvq13"
	amzTargetHeader  = "X-Amz-Target"
	amzInitiateAuth  = "AWSCognitoIdentityProviderService.InitiateAuth"
	amzAuthChallenge = "AWSCognitoIdentityProviderService.RespondToAuthChallenge"
)

// URLs are the Flash API endpoints. The zero value means DefaultURLs
type URLs struct {
	// Auth is the Cognito identity provider endpoint
	Auth string
	// Entrance is the web app's sign-in service
	Entrance string
	// BFF is the corporate card backend-for-frontend serving statements
	BFF string
}

// DefaultURLs returns the production Flash endpoints
func DefaultURLs() URLs {
	return URLs{
		Auth:     "https://hros-auth.flashapp.services",
		Entrance: "https://flashos-entrance.us.flashapp.services/v1/auth",
		BFF:      "https://corporate-card-bff.us.flashapp.services/bff/trpc",
	}
}

// URLsAtBase derives every endpoint from a single base URL. This is the route
// layout the demo server exposes
func URLsAtBase(base string) URLs {
	base = strings.TrimSuffix(base, "/")
	return URLs{
		Auth:     base + "/flash/auth",
		Entrance: base + "/flash/entrance",
		BFF:      base + "/flash/bff",
	}
}

// Config contains the Flash account and credential details
type Config struct {
	Username string
	Password redactor.String
	// OverrideToken skips the login flow entirely when non-empty
	OverrideToken redactor.String
	CompanyID     string
	EmployeeID    string
	URLs          URLs
}

// Validate checks the config for correctness
func (c Config) Validate() error {
	var errs sErrors.Errors
	errs.ErrIf(c.CompanyID == "", "Flash company ID must not be empty")
	errs.ErrIf(c.EmployeeID == "", "Flash employee ID must not be empty")
	if c.OverrideToken == "" {
		errs.ErrIf(c.Username == "", "Flash username must not be empty")
		errs.ErrIf(c.Password == "", "Flash password must not be empty")
	}
	return errs.ErrOrNil()
}

type authState int

const (
	authNotStarted authState = iota
	authInitialized
	authDone
)

// Client fetches statements for one Flash employee account
type Client struct {
	config Config
	client *client.Client
	logger *zap.Logger

	state    authState
	session  string          // Cognito challenge session, only set while authInitialized
	token    redactor.String // API bearer token, only set once authDone
	tokenTTL time.Duration
}

// New creates a Flash client. A config override token counts as already logged in
func New(config Config, httpClient *client.Client, logger *zap.Logger) *Client {
	if (config.URLs == URLs{}) {
		config.URLs = DefaultURLs()
	}
	c := &Client{config: config, client: httpClient, logger: logger}
	if config.OverrideToken != "" {
		c.token = config.OverrideToken
		c.state = authDone
	}
	return c
}

// Description implements model.Provider
func (c *Client) Description() string {
	return "Flash"
}

// Authenticated returns true once the client holds an API bearer token
func (c *Client) Authenticated() bool {
	return c.state == authDone
}

// Token returns the API bearer token and how long it is expected to live.
// Only valid once Authenticated returns true
func (c *Client) Token() (redactor.String, time.Duration) {
	return c.token, c.tokenTTL
}

// Login runs the full auth flow, prompting for the SMS MFA code
func (c *Client) Login(ctx context.Context, prompt prompter.Prompter) error {
	if err := c.InitiateAuth(ctx); err != nil {
		return err
	}
	if c.state == authDone {
		return nil
	}
	code, err := prompt.PromptText(ctx, "Enter SMS code")
	if err != nil {
		return err
	}
	return c.FinishLogin(ctx, code)
}

// InitiateAuth starts a username/password login, triggering the SMS challenge.
// No-op when a login already started or finished
func (c *Client) InitiateAuth(ctx context.Context) error {
	if c.state != authNotStarted {
		return nil
	}
	var resp struct {
		Session string `json:"Session"`
	}
	err := c.client.JSON(ctx, client.Request{
		Method: "POST",
		URL:    c.config.URLs.Auth,
		Header: http.Header{amzTargetHeader: []string{amzInitiateAuth}},
		Body: map[string]interface{}{
			"AuthFlow": "USER_PASSWORD_AUTH",
			"ClientId": cognitoClientID,
			"AuthParameters": map[string]string{
				"USERNAME": c.config.Username,
				"PASSWORD": string(c.config.Password),
			},
			"ClientMetadata": map[string]string{
				"preferredMfa": "SMS_MFA",
			},
		},
	}, &resp)
	if err != nil {
		return errors.Wrap(err, "Flash login failed")
	}
	if resp.Session == "" {
		return errors.New("Flash login response did not contain a challenge session")
	}
	c.session = resp.Session
	c.state = authInitialized
	return nil
}

// FinishLogin answers the SMS challenge and signs in the employee
func (c *Client) FinishLogin(ctx context.Context, smsCode string) error {
	switch c.state {
	case authNotStarted:
		return errors.New("Auth not started: call InitiateAuth first")
	case authDone:
		return nil
	}

	var challengeResp struct {
		AuthenticationResult struct {
			AccessToken redactor.String `json:"AccessToken"`
			ExpiresIn   int64           `json:"ExpiresIn"`
		} `json:"AuthenticationResult"`
	}
	err := c.client.JSON(ctx, client.Request{
		Method: "POST",
		URL:    c.config.URLs.Auth,
		Header: http.Header{amzTargetHeader: []string{amzAuthChallenge}},
		Body: map[string]interface{}{
			"ChallengeName": "SMS_MFA",
			"ChallengeResponses": map[string]string{
				"USERNAME":     c.config.Username,
				"SMS_MFA_CODE": smsCode,
			},
			"ClientId": cognitoClientID,
			"Session":  c.session,
		},
	}, &challengeResp)
	if err != nil {
		return errors.Wrap(err, "Flash SMS challenge failed")
	}
	accessToken := challengeResp.AuthenticationResult.AccessToken
	if accessToken == "" {
		return errors.New("Flash SMS challenge response did not contain an access token")
	}

	var signInResp struct {
		Result struct {
			Data struct {
				Token redactor.String `json:"token"`
			} `json:"data"`
		} `json:"result"`
	}
	err = c.client.JSON(ctx, client.Request{
		Method: "POST",
		URL:    c.config.URLs.Entrance + "/trpc/signInEmployee",
		Header: http.Header{"Authorization": []string{"Bearer " + string(accessToken)}},
		Body: map[string]string{
			"employeeId": c.config.EmployeeID,
			"companyId":  c.config.CompanyID,
		},
	}, &signInResp)
	if err != nil {
		return errors.Wrap(err, "Flash employee sign-in failed")
	}
	if signInResp.Result.Data.Token == "" {
		return errors.New("Flash employee sign-in response did not contain a token")
	}

	c.token = signInResp.Result.Data.Token
	c.tokenTTL = time.Duration(challengeResp.AuthenticationResult.ExpiresIn) * time.Second
	c.session = ""
	c.state = authDone
	return nil
}
