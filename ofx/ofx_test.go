package ofx

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/aclindsa/xml"
	"github.com/extrato-dev/extrato/client/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dtPostedRe = regexp.MustCompile(`<DTPOSTED>([^<\n]+)`)

func parseOFXDate(t *testing.T, dateStr string) time.Time {
	var date ofxgo.Date
	d := xml.NewDecoder(strings.NewReader("<x>" + dateStr + "</x>"))
	require.NoError(t, d.Decode(&date))
	return date.Time
}

func someStatement() model.Statement {
	return model.Statement{
		Provider: "Flash",
		Start:    time.Date(2025, time.March, 1, 0, 0, 0, 0, brt),
		End:      time.Date(2025, time.March, 31, 23, 59, 59, 0, brt),
		Transactions: []model.Transaction{
			{
				ID:     "txn-1",
				Posted: time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC),
				Amount: decimal.New(150000, -2),
				Kind:   model.Credit,
				Payee:  "Recarga de benefícios",
			},
			{
				ID:     "txn-2",
				Posted: time.Date(2025, time.March, 10, 19, 30, 0, 0, time.UTC),
				Amount: decimal.New(-8990, -2),
				Kind:   model.Debit,
				Payee:  "Restaurante Sabor Mineiro",
			},
		},
	}
}

func TestBuild(t *testing.T) {
	now := time.Date(2025, time.April, 1, 12, 0, 0, 0, time.UTC)
	response, err := Build(someStatement(), now)
	require.NoError(t, err)

	assert.EqualValues(t, "Flash", response.Signon.Org)
	require.Len(t, response.CreditCard, 1)
	statement, ok := response.CreditCard[0].(*ofxgo.CCStatementResponse)
	require.True(t, ok)
	assert.EqualValues(t, "BRL", statement.CurDef.String())
	assert.EqualValues(t, "Flash", statement.CCAcctFrom.AcctID)

	require.NotNil(t, statement.BankTranList)
	txns := statement.BankTranList.Transactions
	require.Len(t, txns, 2)
	assert.Equal(t, ofxgo.TrnTypeCredit, txns[0].TrnType)
	assert.EqualValues(t, "txn-1", txns[0].FiTID)
	assert.Equal(t, "1500", txns[0].TrnAmt.String())
	assert.Equal(t, ofxgo.TrnTypeDebit, txns[1].TrnType)
	// big.Rat trims trailing zeros
	assert.Equal(t, "-89.9", txns[1].TrnAmt.String())
	// post dates are shifted into the statement timezone
	assert.Equal(t, "BRT", txns[0].DtPosted.Location().String())
}

func TestBuildBoundsFromTransactions(t *testing.T) {
	stmt := someStatement()
	// out of posting order on purpose
	stmt.Transactions[0], stmt.Transactions[1] = stmt.Transactions[1], stmt.Transactions[0]

	response, err := Build(stmt, time.Now())
	require.NoError(t, err)
	require.Len(t, response.CreditCard, 1)
	statement, ok := response.CreditCard[0].(*ofxgo.CCStatementResponse)
	require.True(t, ok)
	require.NotNil(t, statement.BankTranList)

	// the statement range covers the first through last transaction, not the
	// full month that was requested
	assert.True(t, statement.BankTranList.DtStart.Time.Equal(time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)))
	assert.True(t, statement.BankTranList.DtEnd.Time.Equal(time.Date(2025, time.March, 10, 19, 30, 0, 0, time.UTC)))
	txns := statement.BankTranList.Transactions
	require.Len(t, txns, 2)
	assert.EqualValues(t, "txn-1", txns[0].FiTID)
	assert.EqualValues(t, "txn-2", txns[1].FiTID)
}

func TestBuildEmptyStatement(t *testing.T) {
	stmt := someStatement()
	stmt.Transactions = nil
	_, err := Build(stmt, time.Now())
	assert.EqualError(t, err, "No transactions to export")
}

func TestBuildInvalidStatement(t *testing.T) {
	stmt := someStatement()
	stmt.Provider = ""
	_, err := Build(stmt, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Statement provider must not be empty")
}

func TestWriteRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, someStatement()))

	contents := buf.String()
	assert.Contains(t, contents, "CREDITCARDMSGSRSV1")
	assert.Contains(t, contents, "<FITID>txn-1")
	assert.Contains(t, contents, "<MEMO>Restaurante Sabor Mineiro")

	// timestamps carry the fixed BRT offset
	dtPosted := dtPostedRe.FindStringSubmatch(contents)
	require.NotNil(t, dtPosted)
	posted := parseOFXDate(t, dtPosted[1])
	assert.True(t, posted.Equal(time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)))
	_, offset := posted.Zone()
	assert.Equal(t, -3*60*60, offset)

	// a parser must agree with what was written
	parsed, err := ofxgo.ParseResponse(&buf)
	require.NoError(t, err)
	require.Len(t, parsed.CreditCard, 1)
	statement, ok := parsed.CreditCard[0].(*ofxgo.CCStatementResponse)
	require.True(t, ok)
	require.NotNil(t, statement.BankTranList)
	assert.Len(t, statement.BankTranList.Transactions, 2)
}
