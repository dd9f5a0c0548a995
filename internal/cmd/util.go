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

// Package cmd holds helpers shared by the operations of cmd/taxlot.
package cmd

import (
	"context"

	"github.com/dncohen/taxlot/cfg"
	"github.com/dncohen/taxlot/store"
	"github.com/pkg/errors"
	"src.d10.dev/command"
	"src.d10.dev/command/config"
)

// Config wraps the configuration found by the command package.  With
// no configuration file, every setting takes its default.
func Config() (cfg.Config, error) {
	file, err := command.Config()
	if err != nil {
		if errors.Is(err, config.ConfigNotFound) {
			return cfg.LooseLoad([]byte{})
		}
		return cfg.Config{}, err
	}
	return cfg.New(file)
}

// OpenStore opens the configured database, or the one named by path
// when not empty.
func OpenStore(ctx context.Context, path string) (*store.Store, error) {
	if path == "" {
		c, err := Config()
		if err != nil {
			return nil, err
		}
		path = c.Database()
	}
	command.V(1).Infof("using database %s", path)
	return store.Open(ctx, path)
}
