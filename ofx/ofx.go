// Package ofx serializes statements as OFX files for import into budgeting apps.
package ofx

import (
	"io"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/extrato-dev/extrato/client/model"
	"github.com/pkg/errors"
	"golang.org/x/text/currency"
)

// brt is the providers' statement timezone. A fixed offset keeps OFX timestamps
// stable regardless of the machine's local timezone
var brt = time.FixedZone("BRT", -3*60*60)

// Build assembles an OFX credit card statement response for the given statement
func Build(stmt model.Statement, now time.Time) (*ofxgo.Response, error) {
	if err := stmt.Validate(); err != nil {
		return nil, err
	}
	if len(stmt.Transactions) == 0 {
		return nil, errors.New("No transactions to export")
	}
	// DTSTART/DTEND bound the exported transactions, not the requested window
	stmt.Sort()
	first := stmt.Transactions[0].Posted
	last := stmt.Transactions[len(stmt.Transactions)-1].Posted

	uid, err := ofxgo.RandomUID()
	if err != nil {
		return nil, err
	}
	// OFX 2.x, the XML flavor, imports cleanly into the target budgeting apps
	version, err := ofxgo.NewOfxVersion("203")
	if err != nil {
		return nil, err
	}

	successStatus := ofxgo.Status{
		Code:     0,
		Severity: ofxgo.String("INFO"),
		Message:  ofxgo.String("Success"),
	}
	response := &ofxgo.Response{
		Version: version,
		Signon: ofxgo.SignonResponse{
			Status:   successStatus,
			DtServer: ofxgo.Date{Time: now.In(brt)},
			Language: ofxgo.String("POR"),
			Org:      ofxgo.String(stmt.Provider),
			Fid:      ofxgo.String(stmt.Provider),
		},
	}
	response.CreditCard = append(response.CreditCard, &ofxgo.CCStatementResponse{
		TrnUID: *uid,
		Status: successStatus,
		CurDef: ofxgo.CurrSymbol{Unit: currency.BRL},
		DtAsOf: ofxgo.Date{Time: now.In(brt)},
		CCAcctFrom: ofxgo.CCAcct{
			AcctID: ofxgo.String(stmt.Provider),
		},
		BankTranList: &ofxgo.TransactionList{
			DtStart:      ofxgo.Date{Time: first.In(brt)},
			DtEnd:        ofxgo.Date{Time: last.In(brt)},
			Transactions: transactions(stmt),
		},
	})
	return response, nil
}

func transactions(stmt model.Statement) []ofxgo.Transaction {
	var txns []ofxgo.Transaction
	for _, txn := range stmt.Transactions {
		trnType := ofxgo.TrnTypeDebit
		if txn.Kind == model.Credit {
			trnType = ofxgo.TrnTypeCredit
		}
		txns = append(txns, ofxgo.Transaction{
			TrnType:  trnType,
			DtPosted: ofxgo.Date{Time: txn.Posted.In(brt)},
			TrnAmt:   ofxgo.Amount{Rat: *txn.Amount.Rat()},
			FiTID:    ofxgo.String(txn.ID),
			Memo:     ofxgo.String(txn.Payee),
		})
	}
	return txns
}

// Write marshals stmt as an OFX document to w
func Write(w io.Writer, stmt model.Statement) error {
	response, err := Build(stmt, time.Now())
	if err != nil {
		return err
	}
	b, err := response.Marshal()
	if err != nil {
		return errors.Wrap(err, "Failed to marshal OFX")
	}
	_, err = b.WriteTo(w)
	return errors.Wrap(err, "Failed to write OFX")
}
