package flash

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/extrato-dev/extrato/client"
	"github.com/extrato-dev/extrato/client/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	statementPageSize = 100

	// filterTimeFormat is the BFF's expected date serialization, millisecond precision
	filterTimeFormat = "2006-01-02T15:04:05.000Z"
)

type flashTransaction struct {
	ID          string      `json:"_id"`
	Date        client.Time `json:"date"`
	Amount      int64       `json:"amount"`
	Description string      `json:"description"`
	Status      string      `json:"status"`
	Type        string      `json:"type"`
}

type statementPage struct {
	Items []flashTransaction `json:"items"`
	Meta  struct {
		CurrentPage int `json:"currentPage"`
		TotalItems  int `json:"totalItems"`
		TotalPages  int `json:"totalPages"`
		PageSize    int `json:"pageSize"`
	} `json:"meta"`
}

// statementEnvelope is the tRPC batch response wrapper
type statementEnvelope struct {
	Result struct {
		Data struct {
			JSON statementPage `json:"json"`
		} `json:"data"`
	} `json:"result"`
}

// Statement downloads all completed transactions posted between start and end,
// walking every page the BFF reports. Implements model.Provider
func (c *Client) Statement(ctx context.Context, start, end time.Time) (model.Statement, error) {
	stmt := model.Statement{Provider: c.Description(), Start: start, End: end}
	if c.state != authDone {
		return stmt, errors.New("Not authenticated: call Login first")
	}

	for page := 0; ; page++ {
		resp, err := c.statementPage(ctx, start, end, page)
		if err != nil {
			return stmt, err
		}
		for _, item := range resp.Items {
			txn, ok := parseTransaction(item)
			if !ok {
				continue
			}
			if txn.Kind == "" {
				c.logger.Warn("Skipping transaction of unknown type",
					zap.String("id", item.ID),
					zap.String("type", item.Type))
				continue
			}
			stmt.Transactions = append(stmt.Transactions, txn)
		}
		if page+1 >= resp.Meta.TotalPages {
			break
		}
	}

	stmt.Sort()
	return stmt, nil
}

func (c *Client) statementPage(ctx context.Context, start, end time.Time, page int) (statementPage, error) {
	input, err := json.Marshal(map[string]interface{}{
		"0": map[string]interface{}{
			"json": map[string]interface{}{
				"pagination": map[string]int{
					"currentPage": page,
					"pageSize":    statementPageSize,
				},
				"filter": map[string]string{
					"startDate": start.UTC().Format(filterTimeFormat),
					"endDate":   end.UTC().Format(filterTimeFormat),
				},
			},
			"meta": map[string]interface{}{
				"values": map[string][]string{
					"filter.startDate": {"Date"},
					"filter.endDate":   {"Date"},
				},
			},
		},
	})
	if err != nil {
		return statementPage{}, err
	}

	var envelopes []statementEnvelope
	err = c.client.JSON(ctx, client.Request{
		Method: "GET",
		URL:    c.config.URLs.BFF + "/person.getStatement",
		Query: url.Values{
			"batch": []string{"1"},
			"input": []string{string(input)},
		},
		Header: http.Header{
			"Authorization": []string{string(c.token)},
			"X-Flash-Auth":  []string{"Bearer " + string(c.token)},
			"Company-Id":    []string{c.config.CompanyID},
		},
	}, &envelopes)
	if err != nil {
		return statementPage{}, errors.Wrap(err, "Error fetching Flash statement")
	}
	if len(envelopes) == 0 {
		return statementPage{}, errors.New("Flash statement response did not contain any results")
	}
	return envelopes[0].Result.Data.JSON, nil
}

// parseTransaction maps a BFF item to a model transaction. Incomplete items are
// dropped, items of unknown type map to a zero Kind for the caller to report
func parseTransaction(item flashTransaction) (model.Transaction, bool) {
	if item.Status != "COMPLETED" {
		return model.Transaction{}, false
	}
	var kind model.TransactionKind
	switch item.Type {
	case "DEPOSIT":
		kind = model.Credit
	case "OPEN_LOOP_PAYMENT":
		kind = model.Debit
	}
	return model.Transaction{
		ID:     item.ID,
		Posted: item.Date.Time,
		Amount: model.AmountFromCentavos(item.Amount, kind),
		Kind:   kind,
		Payee:  item.Description,
	}, true
}
