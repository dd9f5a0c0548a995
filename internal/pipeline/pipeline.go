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


// Pipeline package
//
// Commands that expect transaction bundles or trades as input, or emit
// history events as output, use pipeline helper functions to decode
// and encode records from stdin or stdout.  Or, to files.  Pipeline
// uses a stream of JSON values as the underlying encoding.
package pipeline

import (
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DecodeInput sends each JSON value read from r to c.  It does not
// close c.
func DecodeInput[T any](c chan<- T, r io.Reader) error {
	dec := json.NewDecoder(r)

	for n := 0; dec.More(); n++ {
		var record T
		err := dec.Decode(&record)
		if err != nil {
			if errors.Is(err, io.EOF) { // not reached
				break
			}
			return errors.Wrapf(err, "failed to decode record %d", n)
		}
		c <- record
	}

	return nil
}

// EncodeOutput writes every value received from c, until c is closed.
func EncodeOutput[T any](w io.Writer, c <-chan T) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")

	for record := range c {
		err := enc.Encode(record)
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadAll decodes every value in r.
func ReadAll[T any](r io.Reader) ([]T, error) {
	c := make(chan T)
	errc := make(chan error, 1)
	go func() {
		defer close(c)
		errc <- DecodeInput(c, r)
	}()

	var list []T
	for record := range c {
		list = append(list, record)
	}
	return list, <-errc
}
