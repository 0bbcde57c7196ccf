// Package caju downloads statements from the Caju benefit card's private API.
//
// There is no public login flow: the bootstrap bearer and refresh tokens must be
// captured from a MITM proxy while opening the Caju mobile app.
package caju

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/extrato-dev/extrato/client"
	"github.com/extrato-dev/extrato/client/model"
	sErrors "github.com/extrato-dev/extrato/errors"
	"github.com/extrato-dev/extrato/redactor"
	"github.com/pkg/errors"
)

const (
	// DefaultBaseURL is the Caju API gateway
	DefaultBaseURL = "https://apigw.caju.com.br"

	statementPageSize = 20

	// creditFallbackPayee labels credits without a merchant name, i.e. top-ups
	creditFallbackPayee = "Depósito em conta"
)

// Config contains the Caju account and credential details
type Config struct {
	// BaseURL overrides DefaultBaseURL when non-empty
	BaseURL    string
	UserID     string
	EmployeeID string
	// BearerToken is an existing session token used to authorize the refresh call
	BearerToken redactor.String
	// RefreshToken is exchanged for a fresh session token on Login
	RefreshToken redactor.String
}

// Validate checks the config for correctness
func (c Config) Validate() error {
	var errs sErrors.Errors
	errs.ErrIf(c.UserID == "", "Caju user ID must not be empty")
	errs.ErrIf(c.EmployeeID == "", "Caju employee ID must not be empty")
	errs.ErrIf(c.BearerToken == "", "Caju bearer token must not be empty")
	errs.ErrIf(c.RefreshToken == "", "Caju refresh token must not be empty")
	return errs.ErrOrNil()
}

// Client fetches statements for one Caju employee account
type Client struct {
	config Config
	client *client.Client
	token  redactor.String
}

// New creates an unauthenticated Caju client. Call Login before Statement
func New(config Config, httpClient *client.Client) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	return &Client{config: config, client: httpClient}
}

// Description implements model.Provider
func (c *Client) Description() string {
	return "Caju"
}

// Login exchanges the refresh token for a fresh bearer token
func (c *Client) Login(ctx context.Context) error {
	var resp struct {
		BearerToken redactor.String `json:"bearerToken"`
	}
	err := c.client.JSON(ctx, client.Request{
		Method: "POST",
		URL:    fmt.Sprintf("%s/v1/user/%s/bearer_token", c.config.BaseURL, c.config.UserID),
		Header: http.Header{"Authorization": []string{"Bearer " + string(c.config.BearerToken)}},
		Body:   map[string]string{"refreshToken": string(c.config.RefreshToken)},
	}, &resp)
	if err != nil {
		return errors.Wrap(err, "Caju login failed")
	}
	if resp.BearerToken == "" {
		return errors.New("Caju login response did not contain a bearer token")
	}
	c.token = resp.BearerToken
	return nil
}

type statementItem struct {
	ID     string      `json:"id"`
	Action string      `json:"action"`
	Amount int64       `json:"amount"`
	Status string      `json:"status"`
	Posted client.Time `json:"createdAt"`
	Data   *struct {
		MerchantName string `json:"merchantName"`
	} `json:"data"`
}

type statementPage struct {
	HasNext bool `json:"hasNext"`
	Items   []struct {
		Cursor string        `json:"cursor"`
		Item   statementItem `json:"item"`
	} `json:"items"`
}

// Statement downloads all confirmed transactions posted between start and end.
// The API pages with cursors, so this loops until the last page. Implements model.Provider
func (c *Client) Statement(ctx context.Context, start, end time.Time) (model.Statement, error) {
	stmt := model.Statement{Provider: c.Description(), Start: start, End: end}
	if c.token == "" {
		return stmt, errors.New("Not authenticated: call Login first")
	}

	cursor := ""
	for hasNext := true; hasNext; {
		page, err := c.statementPage(ctx, start, end, cursor)
		if err != nil {
			return stmt, err
		}
		hasNext = page.HasNext
		if len(page.Items) == 0 {
			break
		}
		cursor = page.Items[len(page.Items)-1].Cursor

		for _, item := range page.Items {
			if txn, ok := parseTransaction(item.Item); ok {
				stmt.Transactions = append(stmt.Transactions, txn)
			}
		}
	}

	// the API returns newest first
	stmt.Sort()
	return stmt, nil
}

func (c *Client) statementPage(ctx context.Context, start, end time.Time, cursor string) (statementPage, error) {
	var page statementPage
	err := c.client.JSON(ctx, client.Request{
		Method: "GET",
		URL:    fmt.Sprintf("%s/v1/employee/%s/statement", c.config.BaseURL, c.config.EmployeeID),
		Query: url.Values{
			"limit":      []string{strconv.Itoa(statementPageSize)},
			"cursor":     []string{cursor},
			"order":      []string{"DESC"},
			"start_date": []string{start.Format("2006-01-02")},
			"end_date":   []string{end.Format("2006-01-02")},
		},
		Header: http.Header{"Authorization": []string{"Bearer " + string(c.token)}},
	}, &page)
	return page, errors.Wrap(err, "Error fetching Caju statement")
}

// parseTransaction maps a statement item to a model transaction.
// Pending and refunded items are skipped
func parseTransaction(item statementItem) (model.Transaction, bool) {
	if item.Status != "CONFIRMED" {
		return model.Transaction{}, false
	}
	kind := model.Debit
	if item.Action == "CREDIT" {
		kind = model.Credit
	}
	payee := ""
	if item.Data != nil {
		payee = item.Data.MerchantName
	}
	if payee == "" {
		if kind == model.Credit {
			payee = creditFallbackPayee
		} else {
			payee = "unknown"
		}
	}
	return model.Transaction{
		ID:     item.ID,
		Posted: item.Posted.Time,
		Amount: model.AmountFromCentavos(item.Amount, kind),
		Kind:   kind,
		Payee:  payee,
	}, true
}
