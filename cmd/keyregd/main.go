// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	pb "gopkg.in/cheggaaa/pb.v1"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/mvp1983/lido-dao/api"
	"github.com/mvp1983/lido-dao/builtin"
	"github.com/mvp1983/lido-dao/builtin/registry"
	"github.com/mvp1983/lido-dao/lido"
	"github.com/mvp1983/lido-dao/log"
	"github.com/mvp1983/lido-dao/state"
)

var (
	version   string
	gitCommit string
	gitTag    string

	logger = log.WithContext("pkg", "main")
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "Keyreg",
		Usage:     "Node operator key registry service",
		Copyright: "2024 The Lido developers",
		Flags: []cli.Flag{
			dataDirFlag,
			genesisFlag,
			apiAddrFlag,
			verbosityFlag,
			enableMetricsFlag,
		},
		Action: defaultAction,
		Commands: []cli.Command{
			{
				Name:  "migrate",
				Usage: "rebuild the global aggregates from per-operator records",
				Flags: []cli.Flag{
					dataDirFlag,
					genesisFlag,
					governorFlag,
					verbosityFlag,
				},
				Action: migrateAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	initLogger(ctx)
	initMetrics(ctx)
	dataDir := makeDataDir(ctx)

	mainDB := openMainDB(dataDir)
	defer func() { logger.Info("closing registry database..."); mainDB.Close() }()

	eventDB := openEventDB(dataDir)
	defer func() { logger.Info("closing event database..."); eventDB.Close() }()

	st := state.New(mainDB)
	if genePath := ctx.String(genesisFlag.Name); genePath != "" {
		gene, err := loadGenesis(genePath)
		if err != nil {
			fatal(err)
		}
		applied, err := gene.apply(st)
		if err != nil {
			fatalf("apply genesis config: %v", err)
		}
		if applied {
			logger.Info("genesis config applied", "governor", gene.Governor)
		}
	}

	reg := builtin.Registry.WithState(st, registry.WithEventSink(eventDB))

	listener, err := net.Listen("tcp", ctx.String(apiAddrFlag.Name))
	if err != nil {
		fatalf("listen API addr '%v': %v", ctx.String(apiAddrFlag.Name), err)
	}
	srv := &http.Server{Handler: api.New(reg, st, eventDB)}

	printStartupMessage(ctx, listener.Addr().String())

	group, groupCtx := errgroup.WithContext(handleExitSignal())
	group.Go(func() error {
		if err := srv.Serve(listener); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("stopping API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func migrateAction(ctx *cli.Context) error {
	initLogger(ctx)
	dataDir := makeDataDir(ctx)

	mainDB := openMainDB(dataDir)
	defer mainDB.Close()

	governor, err := migrateCaller(ctx)
	if err != nil {
		fatal(err)
	}

	st := state.New(mainDB)
	reg := builtin.Registry.WithState(st)

	count, err := reg.OperatorCount()
	if err != nil {
		fatalf("read operator count: %v", err)
	}

	bar := pb.New64(int64(count)).SetUnits(pb.U_NO).Start()
	err = reg.RecomputeAggregates(governor, func(done, _ uint64) {
		bar.Set64(int64(done))
	})
	bar.Finish()
	if err != nil {
		fatalf("recompute aggregates: %v", err)
	}

	if err := st.Stage().Commit(); err != nil {
		fatalf("commit migrated state: %v", err)
	}
	logger.Info("migration complete", "operators", count)
	return nil
}

// migrateCaller resolves the governor address the migration runs as,
// either from the -governor flag or from the genesis config.
func migrateCaller(ctx *cli.Context) (lido.Address, error) {
	if raw := ctx.String(governorFlag.Name); raw != "" {
		addr, err := lido.ParseAddress(raw)
		if err != nil {
			return lido.Address{}, err
		}
		return *addr, nil
	}
	genePath := ctx.String(genesisFlag.Name)
	if genePath == "" {
		return lido.Address{}, fmt.Errorf("either -%s or -%s is required", governorFlag.Name, genesisFlag.Name)
	}
	gene, err := loadGenesis(genePath)
	if err != nil {
		return lido.Address{}, err
	}
	return gene.governor()
}

func printStartupMessage(ctx *cli.Context, apiAddr string) {
	fmt.Printf(`Starting %v
    Version     %v
    Data dir    [%v]
    API portal  [http://%v/]
`,
		"Keyreg",
		fullVersion(),
		ctx.String(dataDirFlag.Name),
		apiAddr)
}

// handleExitSignal returns a context cancelled on SIGINT or SIGTERM.
func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)

		sig := <-exitSignalCh
		logger.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}
