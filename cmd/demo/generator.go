package main

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/rand"
)

// demoTransaction is a provider-neutral generated transaction. Handlers render
// it into each provider's JSON shape
type demoTransaction struct {
	ID          string
	Date        time.Time
	Centavos    int64
	Description string
	Deposit     bool
}

// Amount returns the signed decimal value, for logging
func (d demoTransaction) Amount() decimal.Decimal {
	amount := decimal.New(d.Centavos, -2)
	if !d.Deposit {
		return amount.Neg()
	}
	return amount
}

// generator deterministically generates transactions for an employee, so
// repeat requests return the same statement
type generator struct {
	seed uint64
}

func newGenerator(employeeID string) *generator {
	return &generator{seed: seedStringToInt(employeeID)}
}

func seedStringToInt(seed string) uint64 {
	buf := bytes.NewBufferString(seed)
	var reducedVal uint64
	for val, err := binary.ReadUvarint(buf); err == nil; val, err = binary.ReadUvarint(buf) {
		reducedVal = (reducedVal ^ val) * val
	}
	return reducedVal | 1
}

func (g *generator) transactions(start, end time.Time) []demoTransaction {
	var rng rand.PCGSource
	rng.Seed(g.seed * uint64(start.Year()) * uint64(start.Month()))
	random := rand.New(&rng)

	var txns []demoTransaction
	date := start
	for {
		date = date.Add(6*time.Hour + time.Duration(random.Int63n(int64(42*time.Hour))))
		if !date.Before(end) {
			return txns
		}
		txn := demoTransaction{
			ID:   strconv.FormatUint(random.Uint64(), 10),
			Date: date,
		}
		if random.Intn(5) == 0 {
			txn.Deposit = true
			txn.Centavos = 50000 + random.Int63n(150000)
			txn.Description = "Recarga de benefícios"
		} else {
			txn.Centavos = 500 + random.Int63n(15000)
			txn.Description = payeeChoices[random.Intn(len(payeeChoices))]
		}
		txns = append(txns, txn)
	}
}

var payeeChoices = []string{
	"Padaria do Zé",
	"Mercado Pão Quente",
	"Restaurante Sabor Mineiro",
	"Café Gerais",
	"Hortifruti da Esquina",
	"Farmácia São João",
	"Supermercado Bom Preço",
	"Lanchonete da Praça",
	"Empório Mineiro",
	"Quitanda Central",
	"Pastelaria do Porto",
	"Adega Dois Irmãos",
}
