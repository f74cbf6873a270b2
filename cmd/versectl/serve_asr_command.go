package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/quranlocator/verse-engine/internal/asr"
	"github.com/quranlocator/verse-engine/internal/observability"
)

func newServeASRCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve-asr",
		Short: "Serve the configured ASR engine over gRPC for remote engines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateASR(); err != nil {
				return err
			}
			engine, err := asr.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			lis, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", addr, err)
			}
			return serveASR(cmd.Context(), lis, &asr.EngineServer{Engine: engine, SampleRate: cfg.SampleRate})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":50051", "Listen address")
	return cmd
}

func serveASR(ctx context.Context, lis net.Listener, srv asr.TranscriberServer) error {
	logger := observability.GetLogger()

	s := grpc.NewServer(grpc.KeepaliveParams(keepalive.ServerParameters{
		Time:    30 * time.Second,
		Timeout: 10 * time.Second,
	}))
	health := asr.RegisterTranscriberServer(s, srv)

	go func() {
		<-ctx.Done()
		health.Shutdown()
		s.GracefulStop()
	}()

	logger.Info().Str("addr", lis.Addr().String()).Msg("Transcriber listening")
	if err := s.Serve(lis); err != nil {
		return fmt.Errorf("transcriber server failed: %w", err)
	}
	return ctx.Err()
}
