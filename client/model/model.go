package model

import (
	"context"
	"sort"
	"time"

	sErrors "github.com/extrato-dev/extrato/errors"
	"github.com/shopspring/decimal"
)

// TransactionKind distinguishes money in from money out
type TransactionKind string

// Transaction kinds, named after their OFX transaction types
const (
	Credit TransactionKind = "CREDIT"
	Debit  TransactionKind = "DEBIT"
)

// Transaction is a provider-neutral, settled card transaction
type Transaction struct {
	// ID is the provider's unique transaction ID, used as the OFX FITID
	ID     string
	Posted time.Time
	// Amount is signed: negative for debits, positive for credits
	Amount decimal.Decimal
	Kind   TransactionKind
	// Payee is the merchant or transaction description
	Payee string
}

// Statement is one date range of settled transactions from a single provider
type Statement struct {
	// Provider is the short provider name, like "Flash". Doubles as the OFX account ID
	Provider     string
	Start, End   time.Time
	Transactions []Transaction
}

// Provider fetches statements from a benefit card API
type Provider interface {
	// Description returns the provider's display name
	Description() string
	// Statement downloads all settled transactions posted between start and end
	Statement(ctx context.Context, start, end time.Time) (Statement, error)
}

// AmountFromCentavos converts a provider's integer centavo amount into a signed
// decimal amount of whole currency units
func AmountFromCentavos(centavos int64, kind TransactionKind) decimal.Decimal {
	amount := decimal.New(centavos, -2)
	if kind == Debit {
		return amount.Neg()
	}
	return amount
}

// Sort orders the statement's transactions by post date, oldest first
func (s *Statement) Sort() {
	sort.SliceStable(s.Transactions, func(i, j int) bool {
		return s.Transactions[i].Posted.Before(s.Transactions[j].Posted)
	})
}

// Validate checks the statement for correctness before export
func (s *Statement) Validate() error {
	var errs sErrors.Errors
	errs.ErrIf(s.Provider == "", "Statement provider must not be empty")
	errs.ErrIf(s.End.Before(s.Start), "Statement end must not come before its start")
	for i, txn := range s.Transactions {
		errs.AddErr(validateTransaction(i, txn))
	}
	return errs.ErrOrNil()
}

func validateTransaction(index int, txn Transaction) error {
	var errs sErrors.Errors
	errs.ErrIf(txn.ID == "", "Transaction #%d ID must not be empty", index)
	errs.ErrIf(txn.Posted.IsZero(), "Transaction #%d post date must not be empty", index)
	switch txn.Kind {
	case Credit:
		errs.ErrIf(txn.Amount.IsNegative(), "Transaction #%d is a credit, amount must not be negative: %s", index, txn.Amount)
	case Debit:
		errs.ErrIf(txn.Amount.IsPositive(), "Transaction #%d is a debit, amount must not be positive: %s", index, txn.Amount)
	default:
		errs.ErrIf(true, "Transaction #%d kind must be %q or %q: %q", index, Credit, Debit, txn.Kind)
	}
	return errs.ErrOrNil()
}
