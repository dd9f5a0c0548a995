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

import "github.com/dncohen/taxlot/evm"

const (
	CounterpartyGas     = "gas"
	CounterpartyGitcoin = "gitcoin"
	CounterpartyXDAI    = "XDAI"
)

// Event signatures (topic zero).
var (
	ERC20Approve          = evm.EventSignature("Approval(address,address,uint256)")
	ERC20OrERC721Transfer = evm.EventSignature("Transfer(address,address,uint256)")
	GovernorAlphaPropose  = evm.EventSignature("ProposalCreated(uint256,address,address[],uint256[],string[],bytes[],uint256,uint256,string)")
	GTCClaim              = evm.EventSignature("Claimed(uint32,address,uint256,bytes32)")
	OneInchClaim          = evm.EventSignature("Claimed(uint256,address,uint256)")
	XDAIBridgeReceive     = evm.EventSignature("RelayedMessage(address,uint256,bytes32)")
)

var (
	GitcoinBulkCheckout = evm.HexToAddress("0xdf869FAD6dB91f437B59F1EdEFab319493D4C4cE")
	GitcoinGovernor     = evm.HexToAddress("0xDbD27635A534A3d3169Ef0498beB56Fb9c937489")
	GTCDistributor      = evm.HexToAddress("0xDE3e5a990bCE7fC60a6f017e7c4a95fc4939299E")
	OneInchDistributor  = evm.HexToAddress("0xE295aD71242373C37C5FdA7B57F26f9eA1088AFe")
	XDAIBridge          = evm.HexToAddress("0x88ad09518695c6c3712AC10a214bE5109a655671")
)
