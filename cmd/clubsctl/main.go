package main

import (
	"log"
	"os"
	"time"

	"clubadmin/internal/apiclient"
	"clubadmin/internal/cache"
	"clubadmin/internal/config"
	"clubadmin/internal/dashboard"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "CLUBSCTL : ", log.LstdFlags)

	cfg, err := config.Load()
	errAndDie(err)
	loc, err := cfg.Location()
	errAndDie(err)

	client := apiclient.New(cfg.UpstreamURL, cfg.UpstreamTimeout)
	cli := commandLine{
		out:    os.Stdout,
		auth:   client,
		svc:    dashboard.NewService(client, cache.New(cache.NewMemory(), cache.Options{TTL: time.Minute}), dashboard.Options{Location: loc}),
		loc:    loc,
		now:    time.Now,
		getenv: os.Getenv,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("error: %s", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
