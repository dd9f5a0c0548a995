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

// Operation import
//
// Store transaction bundles (transaction, receipt, internal
// transactions and tokens) read as a stream of JSON values.
//
package main

import (
	"context"
	"io"
	"os"

	"github.com/dncohen/taxlot/evm"
	"github.com/dncohen/taxlot/internal/cmd"
	"github.com/dncohen/taxlot/internal/pipeline"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"src.d10.dev/command"
)

func init() {
	command.RegisterOperation(command.Operation{
		Handler:     importMain,
		Name:        "import",
		Syntax:      "import [-db <file>] [<file> ...]",
		Description: `Operation "import" stores transaction bundles from files, or stdin when none given.`,
	})
}

func importMain() error {
	dbFlag := command.OperationFlagSet.String("db", "", "database file, overrides configuration")

	err := command.OperationFlagSet.Parse(command.Args()[1:])
	if err != nil {
		return err
	}

	ctx := context.Background()
	s, err := cmd.OpenStore(ctx, *dbFlag)
	command.Check(err)
	defer s.Close()

	var inputs []io.Reader
	if len(command.OperationFlagSet.Args()) == 0 {
		inputs = append(inputs, os.Stdin)
	}
	for _, name := range command.OperationFlagSet.Args() {
		f, err := os.Open(name)
		if err != nil {
			return errors.Wrapf(err, "failed to open %q", name)
		}
		defer f.Close()
		inputs = append(inputs, f)
	}

	// decode bundles from input
	var g errgroup.Group
	bundleIn := make(chan evm.Bundle)
	g.Go(func() error {
		defer close(bundleIn)
		for _, r := range inputs {
			if err := pipeline.DecodeInput(bundleIn, r); err != nil {
				return err
			}
		}
		return nil
	})

	count := 0
	for b := range bundleIn {
		err := s.AddTransactionBundle(ctx, b)
		if err != nil {
			command.Errorf("failed to import %s: %s", b.Transaction.Hash.Hex(), err)
			continue
		}
		command.V(1).Infof("imported %s", b.Transaction.Hash.Hex())
		count++
	}
	command.Check(g.Wait())

	command.Infof("imported %d transactions", count)
	return nil
}
