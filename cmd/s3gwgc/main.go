// Command s3gwgc runs the garbage-collection sweeper as a standalone
// process, grounded in the teacher's tools/delete.go main(): open the log
// file, wire helper.Logger, build a backend, then run workers against the
// GC log until a shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudgate/s3gw/internal/backend/hbase"
	"github.com/cloudgate/s3gw/internal/backend/memory"
	"github.com/cloudgate/s3gw/internal/helper"
	"github.com/cloudgate/s3gw/internal/meta"
	"github.com/cloudgate/s3gw/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to the gateway's JSON config file")
	flag.Parse()
	if *configPath != "" {
		helper.SetupConfig(*configPath)
	}

	closer, err := helper.SetupLogging(helper.CONFIG.LogPath)
	if err != nil {
		panic("failed to open log file: " + err.Error())
	}
	defer closer.Close()

	var backend meta.Backend
	switch helper.CONFIG.MetaBackend {
	case "hbase":
		backend = hbase.New(helper.CONFIG.ZookeeperAddress, 30*time.Second)
	default:
		backend = memory.New()
	}

	sweeper := &storage.Sweeper{Backend: backend, NumWorkers: helper.CONFIG.GCThreads}

	ctx, cancel := context.WithCancel(context.Background())

	helper.Logln("starting gc sweep with", helper.CONFIG.GCThreads, "workers")
	go sweeper.Run(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	for {
		s := <-sig
		if s == syscall.SIGHUP {
			helper.Logln("reloading config")
			if *configPath != "" {
				helper.SetupConfig(*configPath)
			}
			continue
		}
		helper.Logln("received shutdown signal, draining sweep workers...")
		cancel()
		return
	}
}
