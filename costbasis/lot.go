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
	"fmt"

	"github.com/dncohen/taxlot/types"
	"github.com/shopspring/decimal"
)

// AcquisitionEvent is one lot.  Amount, Timestamp, Rate and Index never
// change after creation.  RemainingAmount is reduced as spends consume
// the lot.
type AcquisitionEvent struct {
	Amount          decimal.Decimal
	RemainingAmount decimal.Decimal
	Timestamp       types.Timestamp
	Rate            decimal.Decimal // in profit currency
	Index           int             // position of the originating event in the run
}

func NewAcquisitionEvent(amount decimal.Decimal, ts types.Timestamp, rate decimal.Decimal, index int) *AcquisitionEvent {
	return &AcquisitionEvent{
		Amount:          amount,
		RemainingAmount: amount,
		Timestamp:       ts,
		Rate:            rate,
		Index:           index,
	}
}

func (this AcquisitionEvent) String() string {
	return fmt.Sprintf("AcquisitionEvent @%d. amount: %s rate: %s", this.Timestamp, this.Amount, this.Rate)
}

type SpendEvent struct {
	Timestamp types.Timestamp
	Location  types.Location
	Amount    decimal.Decimal
	Rate      decimal.Decimal // profit currency received for one unit
}

func (this SpendEvent) String() string {
	return fmt.Sprintf("SpendEvent in %s @ %d. amount: %s rate: %s", this.Location, this.Timestamp, this.Amount, this.Rate)
}

// Events is the ledger of one asset.  Acquisitions is FIFO, oldest
// first.  Every lot in Acquisitions has a positive remaining amount.
type Events struct {
	Acquisitions     []*AcquisitionEvent
	UsedAcquisitions []*AcquisitionEvent
	Spends           []SpendEvent

	// set on first acquisition; distinguishes zero balance from never seen
	seen bool
}

func (this *Events) remaining() decimal.Decimal {
	total := decimal.Zero
	for _, lot := range this.Acquisitions {
		total = total.Add(lot.RemainingAmount)
	}
	return total
}
