// Copyright (C) 2020  David N. Cohen
// This file is part of github.com/dncohen/taxlot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// The taxlot command imports Ethereum transactions, decodes them into
// history events, and reports profit and loss under FIFO cost basis
// with an optional tax free holding period.
//
// Each subcommand has a -help flag that explains it in more detail.  For instance
//
//   taxlot report -help
//
// explains the purpose and usage of the report subcommand.
//
// There is a set of global flags such as -config to specify the
// configuration directory, where taxlot expects to find one or more
// *.cfg files.  These global flags apply to all subcommands.
//
// A typical run
//
//   taxlot import bundles.json
//   taxlot decode
//   taxlot report -trades kraken.json
//
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/evm"
	"github.com/pkg/errors"
	"src.d10.dev/command"
	"src.d10.dev/command/config"
)

func main() {
	command.RegisterCommand(command.Command{
		Application: "taxlot",
		Description: "Cost basis and profit and loss of Ethereum accounts and exchange trades.",
	})

	_, err := command.Config()
	if errors.Cause(err) == config.ConfigNotFound {
		// not a problem, we'll use defaults
		command.Info(err)
		err = nil
	}
	command.CheckUsage(err)

	// this command requires an operation
	if len(flag.CommandLine.Args()) < 1 {
		command.CheckUsage(errors.New("command requires an operation"))
	}

	// default prefix for subcommand
	log.SetPrefix(fmt.Sprintf("taxlot %s: ", flag.CommandLine.Args()[0]))

	err = command.CurrentOperation().Operate()
	command.CheckUsage(err)

	command.Exit()
}

// formatAsset shows tokens by symbol.
func formatAsset(tokens evm.TokenResolver, a asset.Asset) string {
	addr, ok := a.EthereumAddress()
	if !ok || tokens == nil {
		return a.String()
	}
	t, ok := tokens.Token(evm.HexToAddress(addr))
	if !ok || t.Symbol == "" {
		return a.String()
	}
	return t.Symbol
}
