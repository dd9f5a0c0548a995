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

// Operation report
//
// Run decoded events and exchange trades through the cost basis
// calculator and show profit and loss.
//
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dncohen/taxlot/accounting"
	"github.com/dncohen/taxlot/decoding/registry"
	"github.com/dncohen/taxlot/evm"
	"github.com/dncohen/taxlot/internal/cmd"
	"github.com/dncohen/taxlot/internal/pipeline"
	"github.com/pkg/errors"
	"src.d10.dev/command"
)

func init() {
	command.RegisterOperation(command.Operation{
		Handler:     reportMain,
		Name:        "report",
		Syntax:      "report [-trades <file>] [-save=false]",
		Description: `Operation "report" computes profit and loss of all decoded events, plus trades read from a file.`,
	})
}

// periodic totals
type totals struct {
	name string // for rendering table
	pnl  accounting.PnL
}

func writeTotals(t totals, currency string) {
	if t.name == "" {
		// Not initialized totals
		// this is reached when we first start to tally
		return
	}
	fmt.Printf("\n%s taxable: %s %s\n", t.name, t.pnl.Taxable.StringFixed(2), currency)
	fmt.Printf("%s tax free: %s %s\n\n", t.name, t.pnl.Free.StringFixed(2), currency)
}

func reportMain() error {
	c, err := cmd.Config()
	command.Check(err)

	dbFlag := command.OperationFlagSet.String("db", "", "database file, overrides configuration")
	tradesFlag := command.OperationFlagSet.String("trades", "", "file of exchange trades, as JSON")
	saveFlag := command.OperationFlagSet.Bool("save", true, "store the report in the database")

	err = command.OperationFlagSet.Parse(command.Args()[1:])
	if err != nil {
		return err
	}

	settings, err := c.Settings()
	if err != nil {
		return err
	}
	historian, err := c.Historian()
	if err != nil {
		return err
	}

	var trades []accounting.Trade
	if *tradesFlag != "" {
		f, err := os.Open(*tradesFlag)
		if err != nil {
			return errors.Wrapf(err, "failed to open %q", *tradesFlag)
		}
		trades, err = pipeline.ReadAll[accounting.Trade](f)
		f.Close()
		if err != nil {
			return errors.Wrapf(err, "failed to read trades from %q", *tradesFlag)
		}
		command.V(1).Infof("read %d trades", len(trades))
	}

	ctx := context.Background()
	s, err := cmd.OpenStore(ctx, *dbFlag)
	command.Check(err)
	defer s.Close()

	tokens, err := s.TokenRegistry(ctx)
	command.Check(err)
	tracked, err := cmd.TrackedAccounts()
	command.Check(err)
	decoder, err := registry.New(s, tokens, tracked)
	command.Check(err)
	events, err := s.AllHistoryEvents(ctx)
	command.Check(err)

	pot := accounting.NewPot(historian, decoder)
	pot.Reset(settings)
	err = pot.Process(ctx, trades, events)
	if err != nil {
		return err
	}
	report := pot.Report()

	writeReport(report, tokens)

	if *saveFlag {
		err = s.SaveReport(ctx, report)
		command.Check(err)
		command.Infof("saved report %s", report.ID)
	}
	return nil
}

func writeReport(report accounting.Report, tokens evm.TokenResolver) {
	settings := report.Settings
	currency := settings.ProfitCurrency.String()
	loc := settings.Location

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', tabwriter.Debug)
	writeHeader := func() {
		// Two rows for each event, for readability on terminal.
		fmt.Fprintln(w, "Date / \t Amount /\t Price /\t Taxable /\t Notes")
		fmt.Fprintln(w, "Location\t Asset\t Value\t Free\t Cost basis")
		fmt.Fprintln(w, "========\t ======\t =====\t =========\t ==========")
	}

	var monthlyTotals, yearlyTotals totals
	writeHeader()
	for _, e := range report.Events {
		t := e.Timestamp.Time()
		if loc != nil {
			t = t.In(loc)
		}
		month := t.Format("2006-01")
		if monthlyTotals.name != month {
			w.Flush()
			writeTotals(monthlyTotals, currency)
			monthlyTotals = totals{name: month}
		}
		year := t.Format("2006")
		if yearlyTotals.name != year {
			w.Flush()
			writeTotals(yearlyTotals, currency)
			yearlyTotals = totals{name: year}
		}
		monthlyTotals.pnl = monthlyTotals.pnl.Add(e.PnL)
		yearlyTotals.pnl = yearlyTotals.pnl.Add(e.PnL)

		amount := e.Amount.String()
		if e.Spend {
			amount = "(" + amount + ")"
		}
		var taxableBasis, freeBasis string
		if e.CostBasis != nil {
			taxableBasis, freeBasis = e.CostBasis.Strings(settings.TimestampToDate)
		}
		fmt.Fprintf(w, "%s\t %s\t %s\t %s\t %s\n", settings.TimestampToDate(e.Timestamp), amount, e.Price, e.PnL.Taxable, e.Notes)
		fmt.Fprintf(w, "%s\t %s\t %s\t %s\t %s %s\n", e.Location, formatAsset(tokens, e.Asset), e.Value().StringFixed(2), e.PnL.Free, taxableBasis, freeBasis)
		fmt.Fprintln(w, "---\t---\t---\t---\t---")
	}
	w.Flush()
	writeTotals(monthlyTotals, currency)
	writeTotals(yearlyTotals, currency)

	for _, kind := range report.Kinds() {
		writeTotals(totals{name: string(kind), pnl: report.Totals[kind]}, currency)
	}
	writeTotals(totals{name: "Total", pnl: report.Overall()}, currency)

	if len(report.MissingAcquisitions) > 0 {
		fmt.Printf("%d missing acquisitions:\n", len(report.MissingAcquisitions))
		for _, m := range report.MissingAcquisitions {
			fmt.Printf("\t%s at %s: found %s, missing %s\n", formatAsset(tokens, m.Asset), settings.TimestampToDate(m.Time), m.FoundAmount, m.MissingAmount)
		}
	}
	if len(report.MissingPrices) > 0 {
		fmt.Printf("%d missing prices:\n", len(report.MissingPrices))
		for _, m := range report.MissingPrices {
			fmt.Printf("\t%s/%s at %s\n", formatAsset(tokens, m.FromAsset), m.ToAsset, settings.TimestampToDate(m.Time))
		}
	}
}
