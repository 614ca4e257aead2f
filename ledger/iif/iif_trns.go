package iif

import (
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the QuickBooks date format of DATE fields.
const DateLayout = "1/2/2006"

// Transaction is a TRNS line with its SPL lines.
type Transaction struct {
	Tr     Trns  `type:"TRNS"`
	Splits []Spl `type:"SPL"`
}

type Trns struct {
	TransactionType string          `iif:"TRNSTYPE"`
	Date            time.Time       `iif:"DATE"`
	Account         string          `iif:"ACCNT"`
	Name            string          `iif:"NAME"`
	Class           string          `iif:"CLASS"`
	Amount          decimal.Decimal `iif:"AMOUNT"`
	DocNum          string          `iif:"DOCNUM"`
	Memo            string          `iif:"MEMO"`
}

type Spl struct {
	TransactionType string          `iif:"TRNSTYPE"`
	Date            time.Time       `iif:"DATE"`
	Account         string          `iif:"ACCNT"`
	Name            string          `iif:"NAME"`
	Class           string          `iif:"CLASS"`
	Amount          decimal.Decimal `iif:"AMOUNT"`
	DocNum          string          `iif:"DOCNUM"`
	Memo            string          `iif:"MEMO"`
}

// ParseIIF returns the transactions of every transaction block in r.
func ParseIIF(r io.Reader) ([]Transaction, error) {
	f, err := NewDecoder(r).Decode()
	if err != nil {
		return nil, err
	}
	var out []Transaction
	for _, b := range f.Blocks {
		if len(b.Headers) == 0 || b.Headers[0].Type != "TRNS" {
			continue
		}
		txs, err := DeserializeTransactions(b)
		if err != nil {
			return nil, err
		}
		out = append(out, txs...)
	}
	return out, nil
}

func DeserializeTransactions(b Block) ([]Transaction, error) {
	var out []Transaction

	for _, recGroup := range b.Records {
		if len(recGroup) == 0 {
			continue
		}

		var tx Transaction
		if err := DeserializeRecordGroup(&tx, recGroup); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}

	return out, nil
}

// DeserializeRecordGroup fills the fields of tx tagged with each record's type.
func DeserializeRecordGroup(tx any, recs []Record) error {
	for _, r := range recs {
		if err := applyRecord(tx, r); err != nil {
			return fmt.Errorf("%s: %w", r.Type, err)
		}
	}
	return nil
}

func applyRecord(tx any, r Record) error {
	txVal := reflect.ValueOf(tx).Elem()
	txType := txVal.Type()

	for i := 0; i < txType.NumField(); i++ {
		if txType.Field(i).Tag.Get("type") != string(r.Type) {
			continue
		}

		fv := txVal.Field(i)
		switch fv.Kind() {
		case reflect.Slice:
			elem := reflect.New(fv.Type().Elem()).Elem()
			if err := populateStructFromRecord(elem, r); err != nil {
				return err
			}
			fv.Set(reflect.Append(fv, elem))
		case reflect.Struct:
			return populateStructFromRecord(fv, r)
		}
		return nil
	}
	return nil
}

func populateStructFromRecord(v reflect.Value, r Record) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("iif")
		if tag == "" {
			continue
		}

		raw, ok := r.Fields[tag]
		if !ok {
			continue
		}

		if err := setFieldValueFromString(v.Field(i), raw); err != nil {
			return fmt.Errorf("field %s: %w", sf.Name, err)
		}
	}
	return nil
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

// setFieldValueFromString converts the string representation from a Record
// into the appropriate Go type and assigns it to fv.
func setFieldValueFromString(fv reflect.Value, s string) error {
	switch {
	case fv.Kind() == reflect.String:
		fv.SetString(s)
	case fv.Type() == timeType:
		if s == "" {
			return nil
		}
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(t))
	case fv.Type() == decimalType:
		if s == "" {
			fv.Set(reflect.ValueOf(decimal.Zero))
			return nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(d))
	default:
		return fmt.Errorf("unsupported type %s", fv.Type())
	}
	return nil
}
