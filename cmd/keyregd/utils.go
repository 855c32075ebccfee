// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/mattn/go-isatty"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/mvp1983/lido-dao/eventdb"
	"github.com/mvp1983/lido-dao/log"
	"github.com/mvp1983/lido-dao/lvldb"
	"github.com/mvp1983/lido-dao/metrics"
)

func fatal(args ...any) {
	fmt.Fprint(os.Stderr, "Fatal: ")
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(1)
}

func fatalf(format string, args ...any) {
	fatal(fmt.Sprintf(format, args...))
}

func initLogger(ctx *cli.Context) {
	var level slog.Level
	switch ctx.Uint64(verbosityFlag.Name) {
	case 0:
		level = slog.LevelError
	case 1:
		level = slog.LevelWarn
	case 2, 3:
		level = slog.LevelInfo
	case 4:
		level = slog.LevelDebug
	default:
		level = log.LevelTrace
	}
	colored := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	log.SetDefault(log.NewTextHandler(level, colored))
}

func initMetrics(ctx *cli.Context) {
	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "org.lido.keyreg")
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "Keyreg")
	default:
		return filepath.Join(home, ".org.lido.keyreg")
	}
}

func makeDataDir(ctx *cli.Context) string {
	dir := ctx.String(dataDirFlag.Name)
	if dir == "" {
		fatalf("unable to infer default data dir, use -%s to specify one", dataDirFlag.Name)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		fatalf("create data dir at '%v': %v", dir, err)
	}
	return dir
}

func openMainDB(dataDir string) *lvldb.LevelDB {
	dir := filepath.Join(dataDir, "registry.db")
	db, err := lvldb.New(dir, lvldb.Options{CacheSize: 128, OpenFilesCacheCapacity: 512})
	if err != nil {
		fatalf("open registry database at '%v': %v", dir, err)
	}
	return db
}

func openEventDB(dataDir string) *eventdb.EventDB {
	path := filepath.Join(dataDir, "event.db")
	db, err := eventdb.New(path)
	if err != nil {
		fatalf("open event database at '%v': %v", path, err)
	}
	return db
}
