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

package decoding

import (
	"fmt"

	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/evm"
	"github.com/dncohen/taxlot/types"
	"github.com/golang/glog"
)

func (this *EVMTransactionDecoder) maybeDecodeERC20Approve(token *evm.Token, ctx *LogContext) (*HistoryEvent, error) {
	l := ctx.Log
	if token == nil || l.Topic(0) != ERC20Approve || len(l.Topics) < 3 {
		return nil, nil
	}

	owner, err := evm.WordToAddress(l.Topics[1].Bytes())
	if err != nil {
		return nil, err
	}
	spender, err := evm.WordToAddress(l.Topics[2].Bytes())
	if err != nil {
		return nil, err
	}
	if !this.base.IsTracked(owner) && !this.base.IsTracked(spender) {
		return nil, nil
	}

	raw, err := evm.WordToInt(l.Data)
	if err != nil {
		return nil, err
	}
	amount := evm.TokenNormalizedValue(raw, token.Decimals)
	return &HistoryEvent{
		EventIdentifier: ctx.Transaction.Hash.Hex(),
		SequenceIndex:   ctx.SequenceIndex(),
		Timestamp:       ctx.Transaction.Timestamp.MS(),
		Location:        types.LocationBlockchain,
		LocationLabel:   owner.Hex(),
		Asset:           token.Asset(),
		Amount:          amount,
		Notes:           fmt.Sprintf("Approve %s %s of %s for spending by %s", amount, token.Symbol, owner.Hex(), spender.Hex()),
		EventType:       EventInformational,
		EventSubtype:    SubtypeApprove,
		Counterparty:    spender.Hex(),
	}, nil
}

// maybeDecodeERC20721Transfer decodes transfers of known tokens, then
// applies pending action items and protocol enrichers to the result.
func (this *EVMTransactionDecoder) maybeDecodeERC20721Transfer(token *evm.Token, ctx *LogContext) (*HistoryEvent, error) {
	if ctx.Log.Topic(0) != ERC20OrERC721Transfer {
		return nil, nil
	}
	if token == nil {
		// Unknown contracts are not queried, the transfer is ignored.
		glog.V(2).Infof("ignoring transfer of unknown token %s in %s", ctx.Log.Address.Hex(), ctx.Transaction.Hash.Hex())
		return nil, nil
	}

	var verbs *Verbs
	counterparty := ""
	if ctx.Transaction.To != nil && *ctx.Transaction.To == GitcoinBulkCheckout {
		verbs = &Verbs{Out: "Donate", In: "Receive donation"}
		counterparty = CounterpartyGitcoin
	}
	transfer, err := this.base.DecodeERC20721Transfer(token, ctx, verbs, counterparty)
	if err != nil || transfer == nil {
		return nil, err
	}

	_, skip := ctx.ActionItems.Apply(transfer)
	if skip {
		return nil, nil
	}

	for i, enrich := range this.enricherRules {
		enriched, err := enrich(token, ctx, transfer)
		if err != nil {
			logDecodeError(err, ctx.Log, ctx.Transaction, fmt.Sprintf("enricher %d", i))
			continue
		}
		if enriched {
			break
		}
	}
	return transfer, nil
}

func (this *EVMTransactionDecoder) symbol(a asset.Asset) string {
	addr, ok := a.EthereumAddress()
	if !ok {
		return string(a)
	}
	if t, ok := this.tokens.Token(evm.HexToAddress(addr)); ok {
		return t.Symbol
	}
	return string(a)
}

// maybeEnrichTransfers rewrites transfers already decoded from earlier
// logs of the transaction.  It never produces an event of its own.
func (this *EVMTransactionDecoder) maybeEnrichTransfers(token *evm.Token, ctx *LogContext) (*HistoryEvent, error) {
	l := ctx.Log
	switch {
	case l.Topic(0) == GTCClaim && l.Address == GTCDistributor:
		for _, event := range ctx.Events {
			if event.Asset == asset.GTC && event.EventType == EventReceive {
				event.EventSubtype = SubtypeAirdrop
				event.Notes = fmt.Sprintf("Claim %s GTC from the GTC airdrop", event.Amount)
			}
		}

	case l.Topic(0) == OneInchClaim && l.Address == OneInchDistributor:
		for _, event := range ctx.Events {
			if event.Asset == asset.INCH && event.EventType == EventReceive {
				event.EventSubtype = SubtypeAirdrop
				event.Notes = fmt.Sprintf("Claim %s 1INCH from the 1INCH airdrop", event.Amount)
			}
		}

	case l.Topic(0) == XDAIBridgeReceive && l.Address == XDAIBridge:
		for _, event := range ctx.Events {
			if event.EventType == EventReceive {
				event.EventType = EventTransfer
				event.EventSubtype = SubtypeBridge
				event.Counterparty = CounterpartyXDAI
				event.Notes = fmt.Sprintf("Bridge %s %s from XDAI", event.Amount, this.symbol(event.Asset))
			}
		}
	}
	return nil, nil
}

// GovernorAlpha ProposalCreated data words.
const (
	proposalIDWord          = 0
	proposalDescriptionWord = 8
)

func (this *EVMTransactionDecoder) maybeDecodeGovernance(token *evm.Token, ctx *LogContext) (*HistoryEvent, error) {
	l := ctx.Log
	if l.Topic(0) != GovernorAlphaPropose {
		return nil, nil
	}

	name := l.Address.Hex()
	if l.Address == GitcoinGovernor {
		name = "Gitcoin"
	}

	word, err := evm.DataWord(l.Data, proposalIDWord)
	if err != nil {
		glog.V(2).Infof("failed to decode governor alpha event: %s", err)
		return nil, nil
	}
	id, err := evm.WordToInt(word)
	if err != nil {
		return nil, err
	}
	text, err := evm.ABIString(l.Data, proposalDescriptionWord)
	if err != nil {
		glog.V(2).Infof("failed to decode governor alpha event: %s", err)
		return nil, nil
	}

	return &HistoryEvent{
		EventIdentifier: ctx.Transaction.Hash.Hex(),
		SequenceIndex:   ctx.SequenceIndex(),
		Timestamp:       ctx.Transaction.Timestamp.MS(),
		Location:        types.LocationBlockchain,
		LocationLabel:   ctx.Transaction.From.Hex(),
		Asset:           asset.ETH,
		Amount:          zero,
		Notes:           fmt.Sprintf("Create %s proposal %s. %s", name, id.ToBig().String(), text),
		EventType:       EventInformational,
		EventSubtype:    SubtypeGovernancePropose,
		Counterparty:    name,
	}, nil
}
