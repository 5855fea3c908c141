package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"google.golang.org/grpc"

	"xdao.co/provchain/config"
	"xdao.co/provchain/keys"
	"xdao.co/provchain/ledger"
	"xdao.co/provchain/ledger/grpcledger"
	"xdao.co/provchain/storage"
	"xdao.co/provchain/storage/casconfig"
	"xdao.co/provchain/storage/grpccas"
	"xdao.co/provchain/telemetry"
)

func main() {
	fs := flag.NewFlagSet("provd", flag.ExitOnError)
	configPath := fs.String("config", "", "config file (YAML)")
	listen := fs.String("listen", "", "listen address (overrides server.listen)")
	_ = fs.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *listen); err != nil {
		fmt.Fprintf(os.Stderr, "provd: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, listen string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Server.Listen = listen
	}

	logger, err := telemetry.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Insecure:     cfg.Telemetry.Insecure,
		SampleRate:   cfg.Telemetry.SampleRate,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("telemetry shutdown", "error", err)
		}
	}()

	cas, closeCAS, err := openCAS(cfg)
	if err != nil {
		return err
	}
	defer closeCAS()

	if err := os.MkdirAll(filepath.Dir(cfg.Ledger.Path), 0o755); err != nil {
		return err
	}
	l, err := ledger.Open(ctx, cfg.Ledger.Path, ledger.WithBlobs(cas), ledger.WithLogger(logger))
	if err != nil {
		return err
	}
	defer l.Close()

	verifier, err := auditVerifier(cfg, logger)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return err
	}

	s := grpc.NewServer()
	grpccas.RegisterCASServer(s, &grpccas.Server{CAS: cas, Logger: logger})
	grpcledger.RegisterLedgerServer(s, &grpcledger.Server{Ledger: l, Verifier: verifier, Logger: logger})

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		s.GracefulStop()
	}()

	logger.Info("provd listening",
		"addr", lis.Addr().String(),
		"ledger", cfg.Ledger.Path,
		"backends", len(cfg.Storage.Backends),
		"audit_signatures", verifier != nil,
	)
	if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// openCAS opens the configured storage, or a local store next to the ledger
// when none is configured.
func openCAS(cfg config.Config) (storage.CAS, func() error, error) {
	sc := cfg.Storage
	if !cfg.HasStorage() {
		sc = casconfig.Config{Backends: []casconfig.BackendConfig{{
			Kind: "localfs",
			Dir:  filepath.Join(filepath.Dir(cfg.Ledger.Path), "cas"),
		}}}
	}
	return sc.Open("")
}

// auditVerifier checks signatures against the configured key, if any.
func auditVerifier(cfg config.Config, logger *slog.Logger) (ledger.SignatureVerifier, error) {
	if cfg.Keys.Name == "" {
		logger.Warn("no keys.name configured; audits will not check signatures")
		return nil, nil
	}
	ks, err := keys.OpenKeyStore(cfg.Keys.Dir)
	if err != nil {
		return nil, err
	}
	s, err := ks.Signer(cfg.Keys.Name, cfg.Keys.Role)
	if err != nil {
		return nil, err
	}
	return keys.Verifier{PublicKey: s.PublicKey(), HashAlg: s.HashAlg()}, nil
}
