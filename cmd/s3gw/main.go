// Command s3gw runs the S3 API gateway, grounded in the teacher's
// top-level main.go: open the log file, wire helper.Logger, build the
// storage layer, and start the API server — generalized onto a
// configurable backend/cache pair and a config file instead of the
// teacher's hardcoded constants.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudgate/s3gw/api"
	"github.com/cloudgate/s3gw/internal/admin"
	"github.com/cloudgate/s3gw/internal/backend/hbase"
	"github.com/cloudgate/s3gw/internal/backend/memory"
	"github.com/cloudgate/s3gw/internal/cache"
	"github.com/cloudgate/s3gw/internal/helper"
	"github.com/cloudgate/s3gw/internal/iam"
	"github.com/cloudgate/s3gw/internal/meta"
	"github.com/cloudgate/s3gw/internal/signature"
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

	if helper.CONFIG.S3Domain != "" {
		signature.SetVirtualHostSuffix(helper.CONFIG.S3Domain)
	}

	var backend meta.Backend
	switch helper.CONFIG.MetaBackend {
	case "hbase":
		backend = hbase.New(helper.CONFIG.ZookeeperAddress, 30*time.Second)
	default:
		backend = memory.New()
	}

	iamStore := iam.NewStore()

	var metaCache *cache.MetaCache
	if helper.CONFIG.RedisAddress != "" {
		redisClient, err := cache.DialRedis(helper.CONFIG.RedisAddress, helper.CONFIG.RedisConnectionNumber)
		if err != nil {
			helper.Logln("redis unavailable, running with local cache only:", err)
		}
		metaCache = cache.NewMetaCache(helper.CONFIG.InMemoryCacheMaxEntries, redisClient)
	} else {
		metaCache = cache.NewMetaCache(helper.CONFIG.InMemoryCacheMaxEntries, nil)
	}

	gateway := storage.New(backend, iamStore, metaCache)
	server := api.NewServer(helper.CONFIG.BindAPIAddress, &api.Handlers{Gateway: gateway, IAM: iamStore})

	adminServer := &admin.Server{Address: helper.CONFIG.BindAdminAddress, Gateway: gateway, IAM: iamStore}
	adminServer.Start()

	go func() {
		if err := server.ListenAndServe(); err != nil {
			helper.Logln("API server stopped with error:", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	<-sig

	helper.Logln("received shutdown signal")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	server.Stop(ctx)
	adminServer.Stop()
}
