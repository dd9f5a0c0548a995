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

// Operation decode
//
// Decode stored transactions into history events.
//
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dncohen/taxlot/cfg"
	"github.com/dncohen/taxlot/decoding"
	"github.com/dncohen/taxlot/decoding/registry"
	"github.com/dncohen/taxlot/evm"
	"github.com/dncohen/taxlot/internal/cmd"
	"github.com/pkg/errors"
	"github.com/y0ssar1an/q"
	"src.d10.dev/command"
)

func init() {
	command.RegisterOperation(command.Operation{
		Handler:     decodeMain,
		Name:        "decode",
		Syntax:      "decode [-workers <n>] [-redecode] [-account <nick|address>,...] [-debug] [<tx hash> ...]",
		Description: `Operation "decode" decodes the given transactions, or every stored transaction not yet decoded.`,
	})
}

func decodeMain() error {
	c, err := cmd.Config()
	command.Check(err)

	dbFlag := command.OperationFlagSet.String("db", "", "database file, overrides configuration")
	workersFlag := command.OperationFlagSet.Int("workers", c.Workers(), "transactions decoded in parallel")
	limitFlag := command.OperationFlagSet.Int("n", 0, "how many undecoded transactions to decode; use 0 for all")
	redecodeFlag := command.OperationFlagSet.Bool("redecode", false, "discard and redo existing decodings")
	accountFlag := command.OperationFlagSet.String("account", "", "comma separated accounts (nickname or address) whose events are shown")
	debugFlag := command.OperationFlagSet.Bool("debug", false, "dump raw transactions with q")

	err = command.OperationFlagSet.Parse(command.Args()[1:])
	if err != nil {
		return err
	}

	var hashes []evm.Hash
	for _, arg := range command.OperationFlagSet.Args() {
		h := evm.HexToHash(arg)
		if h == (evm.Hash{}) {
			return errors.Errorf("bad transaction hash %q", arg)
		}
		hashes = append(hashes, h)
	}
	if *redecodeFlag && len(hashes) == 0 {
		return errors.New("-redecode expects <tx hash> parameters")
	}

	var shown []evm.Address
	if *accountFlag != "" {
		shown, err = cmd.ParseAccountArg(strings.Split(*accountFlag, ","))
		if err != nil {
			return err
		}
	}
	tracked, err := cmd.TrackedAccounts()
	command.Check(err)
	for _, a := range tracked {
		command.V(1).Infof("tracking %s", cmd.FormatAccount(a))
	}

	ctx := context.Background()
	s, err := cmd.OpenStore(ctx, *dbFlag)
	command.Check(err)
	defer s.Close()

	tokens, err := s.TokenRegistry(ctx)
	command.Check(err)
	decoder, err := registry.New(s, tokens, tracked)
	command.Check(err)
	command.V(1).Infof("decoders: %v", decoder.Decoders())

	if *debugFlag {
		for _, h := range hashes {
			b, err := s.Bundle(ctx, h)
			if err != nil {
				command.Error(err)
				continue
			}
			q.Q(b)
		}
	}

	var events []*decoding.HistoryEvent
	if len(hashes) > 0 {
		events, err = decoder.DecodeTransactionHashes(ctx, *redecodeFlag, hashes, *workersFlag)
	} else {
		events, err = decoder.DecodeUndecoded(ctx, *limitFlag, *workersFlag)
	}
	if err != nil {
		return err
	}
	if *debugFlag {
		q.Q(events)
	}

	events = cmd.EventsOfAccounts(shown, events)
	writeEvents(c, tokens, events)
	command.Infof("%d events", len(events))
	return nil
}

func writeEvents(c cfg.Config, tokens evm.TokenResolver, events []*decoding.HistoryEvent) {
	settings, err := c.Settings()
	command.Check(err)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', tabwriter.Debug)
	fmt.Fprintln(w, "Date\t Account\t Type\t Amount\t Asset\t Counterparty\t Notes")
	fmt.Fprintln(w, "====\t =======\t ====\t ======\t =====\t ============\t =====")

	last := ""
	for _, e := range events {
		if e.EventIdentifier != last {
			if last != "" {
				fmt.Fprintln(w, "---\t---\t---\t---\t---\t---\t---")
			}
			fmt.Fprintf(w, "%s\t \t \t \t \t \t %s\n", settings.TimestampToDate(e.Timestamp.Seconds()), e.EventIdentifier)
			last = e.EventIdentifier
		}
		fmt.Fprintf(w, "%d\t %s\t %s/%s\t %s\t %s\t %s\t %s\n",
			e.SequenceIndex, cmd.FormatLabel(e.LocationLabel), e.EventType, e.EventSubtype,
			e.Amount, formatAsset(tokens, e.Asset), cmd.FormatLabel(e.Counterparty), e.Notes)
	}
	w.Flush()
}
