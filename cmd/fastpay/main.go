// Copyright 2025 Certen Protocol
//
// cmd/fastpay is the authority process entrypoint (spec.md §6 CLI surface):
// `run` starts one authority's dispatch shell, `generate` writes a fresh
// AuthorityServerConfig, and `generate-all` expands a YAML topology file
// into a full committee of server configs plus their shared CommitteeConfig.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fastpay/authority/pkg/audit"
	"github.com/fastpay/authority/pkg/authority"
	"github.com/fastpay/authority/pkg/committee"
	"github.com/fastpay/authority/pkg/config"
	"github.com/fastpay/authority/pkg/metrics"
	"github.com/fastpay/authority/pkg/server"
	"github.com/fastpay/authority/pkg/transport"
	"github.com/fastpay/authority/pkg/types"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runCommand(os.Args[2:])
	case "generate":
		err = generateCommand(os.Args[2:])
	case "generate-all":
		err = generateAllCommand(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "fastpay: unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: fastpay <run|generate|generate-all> [flags]")
}

// runCommand starts one authority's dispatch shell (spec.md §4.H) and
// blocks until SIGINT/SIGTERM.
func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	serverPath := fs.String("server", "", "path to AuthorityServerConfig JSON (required)")
	committeePath := fs.String("committee", "", "path to CommitteeConfig JSON (required)")
	initialAccountsPath := fs.String("initial-accounts", "", "path to InitialStateConfig JSON (required)")
	shardFlag := fs.Uint("shard", 0, "retained for CLI compatibility; every shard of an authority is served by this one process in this reference design, so the flag has no effect beyond a startup note")
	bufferSize := fs.Int("buffer-size", 0, "override the config file's buffer_size in bytes")
	coconutSharePath := fs.String("coconut-share", "", "optional path to a gob-encoded Coconut secret share; enables wire tags 6/7 when set")
	retryInterval := fs.Duration("retry-interval", 5*time.Second, "cross-shard commit retransmission interval")
	maxAttempts := fs.Int("max-attempts", 10, "cross-shard retransmission attempts before a commit is left queued for manual retry")
	fs.Parse(args)

	if *serverPath == "" || *committeePath == "" || *initialAccountsPath == "" {
		return fmt.Errorf("run: --server, --committee, and --initial-accounts are required")
	}

	log.Printf("🚀 Starting fastpay authority server")

	serverCfg, err := config.LoadAuthorityServerConfig(*serverPath)
	if err != nil {
		return fmt.Errorf("load server config: %w", err)
	}
	if *bufferSize > 0 {
		serverCfg.BufferSize = *bufferSize
	}
	if serverCfg.MaxAttempts > 0 {
		*maxAttempts = serverCfg.MaxAttempts
	}
	if *shardFlag != 0 {
		log.Printf("⚠️ [Phase 1] --shard is accepted for CLI compatibility but ignored: authority %q serves all %d of its shards from this one process", serverCfg.Name, serverCfg.Shards)
	}

	committeeCfg, err := config.LoadCommitteeConfig(*committeePath)
	if err != nil {
		return fmt.Errorf("load committee config: %w", err)
	}
	initialCfg, err := config.LoadInitialStateConfig(*initialAccountsPath)
	if err != nil {
		return fmt.Errorf("load initial accounts config: %w", err)
	}

	keyPair, err := serverCfg.KeyPair()
	if err != nil {
		return fmt.Errorf("load authority key pair: %w", err)
	}
	log.Printf("✅ [Phase 1] Loaded identity for authority %q (%s)", serverCfg.Name, keyPair.Address().EncodeBase64())

	weights, err := committeeCfg.Weights()
	if err != nil {
		return fmt.Errorf("decode committee weights: %w", err)
	}
	cmt, err := committee.New(weights)
	if err != nil {
		return fmt.Errorf("build committee: %w", err)
	}
	log.Printf("✅ [Phase 2] Committee loaded: %d members, quorum %d, validity %d", len(committeeCfg.Members), cmt.QuorumThreshold(), cmt.ValidityThreshold())

	auth := authority.New(keyPair, cmt, serverCfg.Shards)
	for _, acct := range initialCfg.Accounts {
		id, err := types.DecodeAddressBase64(acct.AccountId)
		if err != nil {
			return fmt.Errorf("decode initial account %s: %w", acct.AccountId, err)
		}
		if err := auth.SeedAccount(id, types.NewBalance(acct.Balance)); err != nil {
			return fmt.Errorf("seed account %s: %w", acct.AccountId, err)
		}
	}
	log.Printf("✅ [Phase 3] Seeded %d initial account(s)", len(initialCfg.Accounts))

	transportKind, err := serverCfg.TransportKind()
	if err != nil {
		return err
	}
	listener, err := transport.Listen(transportKind, serverCfg.Addr(), serverCfg.BufferSize)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", serverCfg.Addr(), err)
	}
	log.Printf("✅ [Phase 4] Listening on %s (%s)", serverCfg.Addr(), transportKind)

	var coconutHandler *coconutHandlerHolder
	if *coconutSharePath != "" {
		coconutHandler, err = loadCoconutHandler(*coconutSharePath, auth)
		if err != nil {
			return fmt.Errorf("load coconut share: %w", err)
		}
		log.Printf("✅ [Phase 4] Coconut extension enabled (share index %d)", coconutHandler.share.Index)
	}

	var reg *metrics.Registry
	if serverCfg.MetricsAddr != "" {
		reg = metrics.New()
		go func() {
			if err := reg.Serve(context.Background(), serverCfg.MetricsAddr); err != nil {
				log.Printf("⚠️ [Phase 5] Metrics server stopped: %v", err)
			}
		}()
		log.Printf("✅ [Phase 5] Metrics exposed on %s", serverCfg.MetricsAddr)
	}

	var auditSink *audit.Sink
	if serverCfg.DatabaseURL != "" {
		log.Printf("🗄️ [Phase 6] Connecting to PostgreSQL audit database...")
		auditSink, err = audit.NewSink(serverCfg.DatabaseURL)
		if err != nil {
			if serverCfg.DatabaseRequired {
				return fmt.Errorf("connect audit database: %w", err)
			}
			log.Printf("⚠️ [Phase 6] Audit database connection failed - running in DEGRADED mode (no audit trail): %v", err)
			auditSink = nil
		} else {
			if err := auditSink.MigrateUp(context.Background()); err != nil {
				return fmt.Errorf("migrate audit database: %w", err)
			}
			log.Printf("✅ [Phase 6] Connected to audit database")
		}
	}

	cfg := server.Config{
		Listener:      listener,
		Authority:     auth,
		Metrics:       reg,
		Audit:         auditSink,
		RetryInterval: *retryInterval,
		MaxAttempts:   *maxAttempts,
	}
	if coconutHandler != nil {
		cfg.Coconut = coconutHandler.handler
	}
	srv := server.New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- srv.Serve(ctx) }()

	log.Printf("🚀 [Phase 7] Authority %q serving", serverCfg.Name)

	select {
	case <-quit:
		log.Printf("🛑 Shutdown signal received")
		cancel()
		<-serveErrCh
	case err := <-serveErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	log.Printf("✅ Authority %q stopped", serverCfg.Name)
	return nil
}

// generateCommand writes a fresh AuthorityServerConfig with a newly
// generated key pair.
func generateCommand(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	out := fs.String("server", "", "output path for the generated AuthorityServerConfig (required)")
	name := fs.String("name", "", "authority name (required)")
	protocol := fs.String("protocol", "tcp", "transport protocol: tcp or udp")
	host := fs.String("host", "127.0.0.1", "listen host")
	port := fs.Int("port", 0, "listen port (required)")
	shards := fs.Uint("shards", 1, "number of shards this authority serves")
	bufferSize := fs.Int("buffer-size", 65536, "frame buffer size in bytes")
	fs.Parse(args)

	if *out == "" || *name == "" || *port == 0 {
		return fmt.Errorf("generate: --server, --name, and --port are required")
	}

	keyPair, err := types.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generate key pair: %w", err)
	}

	cfg := config.AuthorityServerConfig{
		Name:            *name,
		SecretKeyBase64: keyPair.SecretBase64(),
		Host:            *host,
		Port:            *port,
		Transport:       *protocol,
		BufferSize:      *bufferSize,
		Shards:          uint32(*shards),
	}
	if err := writeJSONConfig(*out, cfg); err != nil {
		return err
	}
	log.Printf("✅ Generated authority config for %q at %s (public key %s)", *name, *out, keyPair.Address().EncodeBase64())
	return nil
}

// generateAllCommand expands a YAML topology file into one
// AuthorityServerConfig per authority plus their shared CommitteeConfig
// (spec.md §6 "generate-all").
func generateAllCommand(args []string) error {
	fs := flag.NewFlagSet("generate-all", flag.ExitOnError)
	topologyPath := fs.String("topology", "", "path to the YAML authority topology file (required)")
	outDir := fs.String("out-dir", ".", "directory to write per-authority server configs into")
	committeeOut := fs.String("committee", "committee.json", "output path for the shared CommitteeConfig")
	fs.Parse(args)

	if *topologyPath == "" {
		return fmt.Errorf("generate-all: --topology is required")
	}

	topo, err := config.LoadTopology(*topologyPath)
	if err != nil {
		return fmt.Errorf("load topology: %w", err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	members := make([]config.CommitteeMember, 0, len(topo.Authorities))
	for _, a := range topo.Authorities {
		keyPair, err := types.GenerateKeyPair()
		if err != nil {
			return fmt.Errorf("generate key pair for %s: %w", a.Name, err)
		}

		shards := a.Shards
		if shards == 0 {
			shards = 1
		}
		serverCfg := config.AuthorityServerConfig{
			Name:            a.Name,
			SecretKeyBase64: keyPair.SecretBase64(),
			Host:            a.Host,
			Port:            a.Port,
			Transport:       topo.Transport,
			BufferSize:      topo.BufferSize,
			Shards:          shards,
		}
		path := filepath.Join(*outDir, a.Name+".json")
		if err := writeJSONConfig(path, serverCfg); err != nil {
			return err
		}
		log.Printf("✅ Generated authority config for %q at %s", a.Name, path)

		members = append(members, config.CommitteeMember{
			Name:      a.Name,
			PublicKey: keyPair.Address().EncodeBase64(),
			Weight:    topo.Weight,
			Host:      a.Host,
			Port:      a.Port,
			Transport: topo.Transport,
		})
	}

	committeeCfg := config.CommitteeConfig{Members: members}
	if err := writeJSONConfig(*committeeOut, committeeCfg); err != nil {
		return err
	}
	log.Printf("✅ Generated committee config with %d member(s) at %s", len(members), *committeeOut)
	return nil
}
