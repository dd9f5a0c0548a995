// Copyright (C) 2020  David N. Cohen
// This file is part of github.com/dncohen/taxlot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package costbasis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dncohen/taxlot/types"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrMissingField = errors.New("missing field")

// DeserializationError reports a persisted record that cannot be
// restored.  When a required key is absent, Cause() is ErrMissingField.
type DeserializationError struct {
	Field string
	err   error
}

func (this *DeserializationError) Error() string {
	return fmt.Sprintf("cost basis deserialization failed on %q: %s", this.Field, this.err)
}

func (this *DeserializationError) Cause() error  { return this.err }
func (this *DeserializationError) Unwrap() error { return this.err }

func missing(field string) error {
	return &DeserializationError{Field: field, err: ErrMissingField}
}

func malformed(field string, err error) error {
	return &DeserializationError{Field: field, err: err}
}

// MatchedAcquisition records how much of one lot a spend consumed.
// Event is a back reference; the consumed amount is snapshotted in
// Amount when the match is made.
type MatchedAcquisition struct {
	Amount  decimal.Decimal
	Event   *AcquisitionEvent
	Taxable bool
}

func (this MatchedAcquisition) String(converter func(types.Timestamp) string) string {
	return fmt.Sprintf("%s / %s  acquired at %s for price: %s", this.Amount, this.Event.Amount, converter(this.Event.Timestamp), this.Event.Rate)
}

// Info is the cost basis of one spend.
//
// Only IsComplete and MatchedAcquisitions survive Serialize.  The
// totals come back as zero from DeserializeInfo.
type Info struct {
	TaxableAmount       decimal.Decimal
	TaxableBoughtCost   decimal.Decimal
	TaxfreeBoughtCost   decimal.Decimal
	MatchedAcquisitions []MatchedAcquisition
	IsComplete          bool

	// in memory only
	TaxfreeAmount decimal.Decimal
}

// Strings renders the taxable and the tax free matches for reports.
func (this Info) Strings(converter func(types.Timestamp) string) (taxable, free string) {
	var t, f []string
	if !this.IsComplete {
		t = append(t, "Incomplete cost basis information for spend.")
		f = append(f, "Incomplete cost basis information for spend.")
	}
	for _, match := range this.MatchedAcquisitions {
		if match.Taxable {
			t = append(t, match.String(converter))
		} else {
			f = append(f, match.String(converter))
		}
	}
	return strings.Join(t, " "), strings.Join(f, " ")
}

func (this AcquisitionEvent) Serialize() map[string]interface{} {
	return map[string]interface{}{
		"timestamp":   int64(this.Timestamp),
		"full_amount": this.Amount.String(),
		"rate":        this.Rate.String(),
		"index":       this.Index,
	}
}

// DeserializeAcquisitionEvent restores a lot.  The remaining amount
// starts over at the full amount.
func DeserializeAcquisitionEvent(data map[string]interface{}) (*AcquisitionEvent, error) {
	ts, err := intField(data, "timestamp")
	if err != nil {
		return nil, err
	}
	amount, err := decimalField(data, "full_amount")
	if err != nil {
		return nil, err
	}
	rate, err := decimalField(data, "rate")
	if err != nil {
		return nil, err
	}
	index, err := intField(data, "index")
	if err != nil {
		return nil, err
	}
	return NewAcquisitionEvent(amount, types.Timestamp(ts), rate, int(index)), nil
}

func (this MatchedAcquisition) Serialize() map[string]interface{} {
	return map[string]interface{}{
		"amount":  this.Amount.String(),
		"event":   this.Event.Serialize(),
		"taxable": this.Taxable,
	}
}

func DeserializeMatchedAcquisition(data map[string]interface{}) (*MatchedAcquisition, error) {
	raw, ok := data["event"]
	if !ok {
		return nil, missing("event")
	}
	eventData, ok := raw.(map[string]interface{})
	if !ok {
		return nil, malformed("event", errors.Errorf("unexpected %T", raw))
	}
	event, err := DeserializeAcquisitionEvent(eventData)
	if err != nil {
		return nil, err
	}
	amount, err := decimalField(data, "amount")
	if err != nil {
		return nil, err
	}
	taxable, err := boolField(data, "taxable")
	if err != nil {
		return nil, err
	}
	return &MatchedAcquisition{Amount: amount, Event: event, Taxable: taxable}, nil
}

func (this Info) Serialize() map[string]interface{} {
	matched := make([]interface{}, 0, len(this.MatchedAcquisitions))
	for _, m := range this.MatchedAcquisitions {
		matched = append(matched, m.Serialize())
	}
	return map[string]interface{}{
		"is_complete":          this.IsComplete,
		"matched_acquisitions": matched,
	}
}

// DeserializeInfo restores an Info made by Serialize.  Totals are zero.
func DeserializeInfo(data map[string]interface{}) (*Info, error) {
	complete, err := boolField(data, "is_complete")
	if err != nil {
		return nil, err
	}
	raw, ok := data["matched_acquisitions"]
	if !ok {
		return nil, missing("matched_acquisitions")
	}
	list, ok := raw.([]interface{})
	if !ok && raw != nil {
		return nil, malformed("matched_acquisitions", errors.Errorf("unexpected %T", raw))
	}

	info := &Info{
		TaxableAmount:     decimal.Zero,
		TaxableBoughtCost: decimal.Zero,
		TaxfreeBoughtCost: decimal.Zero,
		TaxfreeAmount:     decimal.Zero,
		IsComplete:        complete,
	}
	for _, entry := range list {
		m, ok := entry.(map[string]interface{})
		if !ok {
			return nil, malformed("matched_acquisitions", errors.Errorf("unexpected entry %T", entry))
		}
		match, err := DeserializeMatchedAcquisition(m)
		if err != nil {
			return nil, err
		}
		info.MatchedAcquisitions = append(info.MatchedAcquisitions, *match)
	}
	return info, nil
}

// MarshalJSON encodes the persisted form.
func (this Info) MarshalJSON() ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(this.Serialize())
}

func (this *Info) UnmarshalJSON(b []byte) error {
	info, err := UnmarshalInfo(b)
	if err != nil {
		return err
	}
	*this = *info
	return nil
}

// UnmarshalInfo decodes JSON produced by MarshalJSON.
func UnmarshalInfo(b []byte) (*Info, error) {
	var data map[string]interface{}
	dec := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, errors.Wrap(err, "failed to decode cost basis json")
	}
	return DeserializeInfo(data)
}

func boolField(data map[string]interface{}, field string) (bool, error) {
	raw, ok := data[field]
	if !ok {
		return false, missing(field)
	}
	b, ok := raw.(bool)
	if !ok {
		return false, malformed(field, errors.Errorf("expected bool, got %T", raw))
	}
	return b, nil
}

func decimalField(data map[string]interface{}, field string) (decimal.Decimal, error) {
	raw, ok := data[field]
	if !ok {
		return decimal.Zero, missing(field)
	}
	var d decimal.Decimal
	var err error
	switch v := raw.(type) {
	case string:
		d, err = decimal.NewFromString(v)
	case json.Number:
		d, err = decimal.NewFromString(v.String())
	case float64:
		d = decimal.NewFromFloat(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case decimal.Decimal:
		d = v
	default:
		err = errors.Errorf("expected decimal, got %T", raw)
	}
	if err != nil {
		return decimal.Zero, malformed(field, err)
	}
	return d, nil
}

func intField(data map[string]interface{}, field string) (int64, error) {
	raw, ok := data[field]
	if !ok {
		return 0, missing(field)
	}
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case types.Timestamp:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, malformed(field, err)
		}
		return i, nil
	}
	return 0, malformed(field, errors.Errorf("expected integer, got %T", raw))
}
