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


package cfg

// Provides a consistent configuration file format for cmd/taxlot.

// taxlot.cfg example:

/*
# Currency of reported profit and loss.
profit_currency=EUR

# Lots held longer than this many seconds are disposed of tax free.
taxfree_after_period=31536000

timezone=Europe/Berlin
include_gas_costs=true
include_crypto2crypto=true

database=taxlot.db
oracles=manual
workers=4

# Tracked accounts, by nickname.
[hot wallet]
	address=0x00000000000000000000000000000000000A11CE

[ledger]
	address=0x0000000000000000000000000000000000000B0B

# Manual prices in the profit currency, by unix timestamp.
[price "ETH"]
	1600000000=310.25
	1600086400=322.50
*/

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dncohen/taxlot/accounting"
	"github.com/dncohen/taxlot/asset"
	"github.com/dncohen/taxlot/costbasis"
	"github.com/dncohen/taxlot/evm"
	"github.com/dncohen/taxlot/price"
	"github.com/dncohen/taxlot/types"
	"github.com/go-ini/ini"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	DefaultDatabase = "taxlot.db"
	DefaultWorkers  = 4
)

var ErrNoConfig = errors.New("no configuration file found")

type Config struct {
	*ini.File
	// map nicknames to addresses, and back
	accounts  map[string]evm.Address
	nicknames map[evm.Address]string
	order     []string
}

// Helper loads multiple config files
func LooseLoadGlob(pattern string) (Config, error) {
	configFilenames, err := filepath.Glob(pattern)
	if err != nil {
		return Config{}, err
	}
	if len(configFilenames) == 0 {
		return Config{}, errors.Wrapf(ErrNoConfig, "no match for %q", pattern)
	}
	// https://golang.org/doc/faq#convert_slice_of_interface
	configs := make([]interface{}, len(configFilenames))
	for i, v := range configFilenames {
		configs[i] = v
	}
	return LooseLoad(configs[0], configs[1:]...)
}

// Wrapper around https://godoc.org/gopkg.in/go-ini/ini.v1#LooseLoad
func LooseLoad(source interface{}, others ...interface{}) (Config, error) {
	file, err := ini.LooseLoad(source, others...)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to load configuration file")
	}
	return New(file)
}

// New wraps an already loaded file, i.e. the one found by
// command.Config().
func New(file *ini.File) (Config, error) {
	config := Config{
		File:      file,
		accounts:  make(map[string]evm.Address),
		nicknames: make(map[evm.Address]string),
	}
	// Create a mapping of nickname -> account.
	for _, section := range file.Sections() {
		if !section.HasKey("address") {
			continue
		}
		nickname := section.Name()
		address := section.Key("address").String()
		if !evm.IsHexAddress(address) {
			return config, errors.Errorf("bad address %q with nickname %q", address, nickname)
		}
		a := evm.HexToAddress(address)
		if _, ok := config.accounts[nickname]; !ok {
			config.order = append(config.order, nickname)
		}
		config.accounts[nickname] = a
		config.nicknames[a] = nickname
	}
	return config, nil
}

func (config Config) root() *ini.Section {
	return config.Section("")
}

func (config Config) ProfitCurrency() asset.Asset {
	return asset.New(config.root().Key("profit_currency").MustString(string(asset.EUR)))
}

func (config Config) Database() string {
	return config.root().Key("database").MustString(DefaultDatabase)
}

func (config Config) Workers() int {
	n := config.root().Key("workers").MustInt(DefaultWorkers)
	if n < 1 {
		return 1
	}
	return n
}

// Oracles in the order they are asked for a price.
func (config Config) Oracles() []string {
	return config.root().Key("oracles").Strings(",")
}

// Settings for a processing run.
func (config Config) Settings() (accounting.Settings, error) {
	s := accounting.DefaultSettings()
	root := config.root()
	s.ProfitCurrency = config.ProfitCurrency()

	if root.HasKey("taxfree_after_period") {
		period, err := root.Key("taxfree_after_period").Int64()
		if err != nil {
			return s, errors.Wrap(err, "bad taxfree_after_period")
		}
		if period < 0 {
			return s, errors.Errorf("negative taxfree_after_period %d", period)
		}
		s.TaxfreeAfterPeriod = costbasis.TaxfreePeriod(period)
	}

	s.DateFormat = root.Key("date_format").MustString(costbasis.DefaultDateFormat)
	if root.HasKey("timezone") {
		loc, err := time.LoadLocation(root.Key("timezone").String())
		if err != nil {
			return s, errors.Wrap(err, "bad timezone")
		}
		s.Location = loc
	}

	s.IncludeGasCosts = root.Key("include_gas_costs").MustBool(true)
	s.IncludeCrypto2Crypto = root.Key("include_crypto2crypto").MustBool(true)
	return s, nil
}

// TrackedAccounts in the order configured.
func (config Config) TrackedAccounts() []evm.Address {
	list := make([]evm.Address, 0, len(config.order))
	for _, nick := range config.order {
		list = append(list, config.accounts[nick])
	}
	return list
}

func (config Config) GetAccountByNickname(nickname string) (evm.Address, bool) {
	a, ok := config.accounts[nickname]
	return a, ok
}

func (config Config) GetAccountNickname(account evm.Address) (string, bool) {
	nick, ok := config.nicknames[account]
	return nick, ok
}

// Helper to parse a command line argument, address or nickname.
func (config Config) AccountFromArg(arg string) (evm.Address, error) {
	if evm.IsHexAddress(arg) {
		return evm.HexToAddress(arg), nil
	}
	a, ok := config.GetAccountByNickname(arg)
	if !ok {
		return a, errors.Errorf("not an address or nickname: %s", arg)
	}
	return a, nil
}

// priceAsset returns the asset of a [price "ASSET"] section.
func priceAsset(name string) (asset.Asset, bool) {
	rest := strings.TrimPrefix(name, "price ")
	if rest == name {
		return "", false
	}
	rest = strings.Trim(strings.TrimSpace(rest), `"`)
	if rest == "" {
		return "", false
	}
	return asset.New(rest), true
}

// ManualOracle holds the prices of every [price "ASSET"] section.
func (config Config) ManualOracle() (*price.ManualOracle, error) {
	oracle := price.NewManualOracle()
	to := config.ProfitCurrency()
	n := 0
	for _, section := range config.Sections() {
		a, ok := priceAsset(section.Name())
		if !ok {
			continue
		}
		for _, key := range section.Keys() {
			ts, err := strconv.ParseInt(key.Name(), 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "[%s] bad timestamp %q", section.Name(), key.Name())
			}
			rate, err := decimal.NewFromString(key.String())
			if err != nil {
				return nil, errors.Wrapf(err, "[%s] bad rate %q", section.Name(), key.String())
			}
			oracle.Add(a, to, types.Timestamp(ts), rate)
			n++
		}
	}
	glog.V(1).Infof("loaded %d manual prices", n)
	return oracle, nil
}

// Historian asks the configured oracles, in order.
func (config Config) Historian() (*price.Historian, error) {
	names := config.Oracles()
	if len(names) == 0 {
		names = []string{"manual"}
	}
	var oracles []price.Oracle
	for _, name := range names {
		switch strings.TrimSpace(name) {
		case "manual":
			oracle, err := config.ManualOracle()
			if err != nil {
				return nil, err
			}
			oracles = append(oracles, oracle)
		default:
			return nil, errors.Errorf("unknown price oracle %q", name)
		}
	}
	return price.NewHistorian(oracles...)
}
