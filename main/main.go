// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database/memdb"

	"github.com/ava-labs/contractvm/ast"
	"github.com/ava-labs/contractvm/chain"
	"github.com/ava-labs/contractvm/coverage"
	"github.com/ava-labs/contractvm/types"
	"github.com/ava-labs/contractvm/vm"
)

// Version of the binary
const Version = "v0.1.0"

const shutdownTimeout = 5 * time.Second

func main() {
	v, err := getViper()
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	// Print version and exit
	if v.GetBool(versionKey) {
		fmt.Printf("%s@%s\n", chain.Name, Version)
		os.Exit(0)
	}

	lvl, err := log.LvlFromString(v.GetString(logLevelKey))
	if err != nil {
		fmt.Printf("couldn't parse log level: %s\n", err)
		os.Exit(1)
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.TerminalFormat())))

	switch {
	case v.GetString(lcovOutKey) != "":
		err = coverage.ProduceLCOV(v.GetString(lcovOutKey), v.GetStringSlice(lcovRegisterKey), v.GetStringSlice(lcovCoverageKey))
	case v.GetString(registerOutKey) != "":
		err = register(v)
	default:
		err = serve(v)
	}
	if err != nil {
		log.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func register(v *viper.Viper) error {
	contract, err := types.ParseContractIdentifier(v.GetString(registerContractKey))
	if err != nil {
		return err
	}
	srcFile := v.GetString(registerSourceKey)
	source, err := os.ReadFile(srcFile)
	if err != nil {
		return err
	}
	exprs, err := ast.Parse(string(source))
	if err != nil {
		return fmt.Errorf("couldn't parse %s: %w", srcFile, err)
	}
	return coverage.RegisterSourceFile(contract, srcFile, exprs, v.GetString(registerOutKey))
}

func serve(v *viper.Viper) error {
	logger := log.New("node", chain.Name)
	registry := prometheus.NewRegistry()

	var (
		opts     []vm.Option
		reporter *coverage.Reporter
	)
	coverageFile := v.GetString(coverageFileKey)
	if coverageFile != "" {
		reporter = coverage.NewReporter(logger.New("module", "coverage"))
		opts = append(opts, vm.WithEvalObserver(reporter))
	}

	c, err := chain.New(memdb.New(), getChainConfig(v), registry, logger, opts...)
	if err != nil {
		return fmt.Errorf("couldn't create chain: %w", err)
	}
	defer c.Close()

	handlers, err := c.CreateHandlers()
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	for path, handler := range handlers {
		mux.Handle("/ext/"+chain.Name+path, handler)
	}
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              net.JoinHostPort(v.GetString(httpHostKey), strconv.Itoa(v.GetInt(httpPortKey))),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("serving", "address", server.Addr, "version", Version)
		serveErr <- server.ListenAndServe()
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-signals:
		logger.Info("shutting down", "signal", sig)
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("failed to shut down HTTP server", "error", err)
	}
	if reporter != nil {
		return reporter.WriteFile(coverageFile)
	}
	return nil
}
