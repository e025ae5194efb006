// (c) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ava-labs/contractvm/blocktree"
	"github.com/ava-labs/contractvm/chain"
)

const (
	versionKey           = "version"
	configFileKey        = "config-file"
	logLevelKey          = "log-level"
	httpHostKey          = "http-host"
	httpPortKey          = "http-port"
	mempoolSizeKey       = "mempool-size"
	blockCacheSizeKey    = "block-cache-size"
	contractCacheSizeKey = "contract-cache-size"
	evalBudgetKey        = "eval-budget"
	nodeCacheSizeKey     = "node-cache-size"
	lookupCacheSizeKey   = "lookup-cache-size"
	coverageFileKey      = "coverage-file"
	lcovOutKey           = "lcov-out"
	lcovRegisterKey      = "lcov-register"
	lcovCoverageKey      = "lcov-coverage"
	registerOutKey       = "register-out"
	registerContractKey  = "register-contract"
	registerSourceKey    = "register-source"

	envPrefix = "contractvm"
)

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(chain.Name, flag.ContinueOnError)

	fs.Bool(versionKey, false, "If true, prints version and quit")
	fs.String(configFileKey, "", "Specifies a config file")
	fs.String(logLevelKey, "info", "Log level: crit, error, warn, info, debug")
	fs.String(httpHostKey, "127.0.0.1", "Address of the HTTP server")
	fs.Uint(httpPortKey, 9650, "Port of the HTTP server")
	fs.Int(mempoolSizeKey, chain.DefaultConfig.MempoolSize, "Maximum number of pending transactions")
	fs.Int(blockCacheSizeKey, chain.DefaultConfig.BlockCacheSize, "Number of executed blocks to cache")
	fs.Int(contractCacheSizeKey, chain.DefaultConfig.ContractCacheSize, "Number of parsed contracts to cache")
	fs.Uint64(evalBudgetKey, chain.DefaultConfig.EvalBudget, "Number of expressions a transaction or read-only call may evaluate")
	fs.Int(nodeCacheSizeKey, blocktree.DefaultConfig.NodeCacheSize, "Number of block tree nodes to cache")
	fs.Int(lookupCacheSizeKey, blocktree.DefaultConfig.LookupCacheSize, "Number of committed key resolutions to cache")
	fs.String(coverageFileKey, "", "If set, records line coverage and writes it to this file on shutdown")
	fs.String(lcovOutKey, "", "If set, merges coverage files into this LCOV report and quits")
	fs.String(registerOutKey, "", "If set, writes the coverage registration of a contract source to this file and quits")
	fs.String(registerContractKey, "", "Contract identifier (ISSUER.name) of the registered source")
	fs.String(registerSourceKey, "", "Path of the registered contract source")

	return fs
}

// getViper returns the viper environment for the binary
func getViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs := buildFlagSet()
	pflag.CommandLine.AddGoFlagSet(fs)
	pflag.StringSlice(lcovRegisterKey, nil, "Contract registration files to report on")
	pflag.StringSlice(lcovCoverageKey, nil, "Coverage files to merge")
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	if configFile := v.GetString(configFileKey); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("couldn't read config file %s: %w", configFile, err)
		}
	}
	return v, nil
}

func getChainConfig(v *viper.Viper) chain.Config {
	return chain.Config{
		MempoolSize:       v.GetInt(mempoolSizeKey),
		BlockCacheSize:    v.GetInt(blockCacheSizeKey),
		ContractCacheSize: v.GetInt(contractCacheSizeKey),
		EvalBudget:        v.GetUint64(evalBudgetKey),
		BlockTree: blocktree.Config{
			NodeCacheSize:   v.GetInt(nodeCacheSizeKey),
			LookupCacheSize: v.GetInt(lookupCacheSizeKey),
		},
	}
}
