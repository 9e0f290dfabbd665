package main

import (
	"CommSpectra/internal/acceptor"
	"CommSpectra/internal/api"
	"CommSpectra/internal/config"
	"CommSpectra/internal/engine/manager"
	"CommSpectra/internal/report"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (built-in defaults when empty)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config path] work_peer_count comm_peer_count granularity_seconds\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// 1. Arguments and configuration; nothing listens until both are valid.
	args, err := config.ParseArgs(flag.Args())
	if err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}
	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		log.Println("Configuration loaded successfully.")
	}
	fmt.Printf("starting with work peers: %d, comm peers: %d, granularity: %d\n",
		args.WorkPeers, args.CommPeers, int64(args.Granularity.Seconds()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Query API, reporting NOT_SERVING until every peer has connected.
	board := report.NewBoard(uint32(cfg.Engine.Shards(cfg.Receiver.NumWorkers)))
	var server *api.Server
	if cfg.API.Enabled {
		server = api.NewServer(cfg.API, board)
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start API: %v", err)
		}
	}

	// 3. Accept the fixed fleet on both listeners.
	work, comm, err := acceptFleet(ctx, cfg.Receiver, args)
	if err != nil {
		shutdown(server)
		if errors.Is(err, context.Canceled) {
			log.Println("Shutdown signal received before all peers connected.")
			return
		}
		log.Fatalf("Failed to accept peers: %v", err)
	}
	if server != nil {
		server.SetServing(true)
	}

	// 4. Run until every stream ends, a fatal error occurs, or a signal arrives.
	mgr, err := manager.NewManager(cfg, args, board, work, comm)
	if err != nil {
		shutdown(server)
		log.Fatalf("Failed to create manager: %v", err)
	}
	log.Printf("Run %s processing %d computation and %d communication connections.", mgr.RunID(), len(work), len(comm))

	err = mgr.Run(ctx)
	shutdown(server)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Pipeline failed: %v", err)
	}
	log.Println("Shutdown complete.")
}

func acceptFleet(ctx context.Context, cfg config.ReceiverConfig, args config.Args) (work, comm []net.Conn, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		work, err = acceptor.AcceptAll(gctx, cfg.WorkAddr, args.WorkPeers)
		return err
	})
	g.Go(func() error {
		var err error
		comm, err = acceptor.AcceptAll(gctx, cfg.CommAddr, args.CommPeers)
		return err
	})
	if err := g.Wait(); err != nil {
		for _, c := range append(work, comm...) {
			c.Close()
		}
		return nil, nil, err
	}
	return work, comm, nil
}

func shutdown(server *api.Server) {
	if server != nil {
		server.Stop()
	}
}
