package main

import (
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/yourusername/race-edge/internal/features"
	"github.com/yourusername/race-edge/internal/ml"
)

var (
	modelArtifact string
	modelAddress  string
)

func init() {
	serveModelCmd.Flags().StringVar(&modelArtifact, "artifact", "", "Path to a linear model artifact")
	serveModelCmd.Flags().StringVar(&modelAddress, "address", ":9090", "Listen address")
	_ = serveModelCmd.MarkFlagRequired("artifact")
}

var serveModelCmd = &cobra.Command{
	Use:   "serve-model",
	Short: "Serve a linear model artifact over the gRPC scoring protocol",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		scorer, err := ml.LoadLinearScorer(modelArtifact, features.Names())
		if err != nil {
			return err
		}

		lis, err := net.Listen("tcp", modelAddress)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", modelAddress, err)
		}

		srv := grpc.NewServer()
		ml.RegisterScorerService(srv, scorer)

		go func() {
			<-ctx.Done()
			srv.GracefulStop()
		}()

		log.WithFields(logrus.Fields{
			"model":   scorer.Name(),
			"address": modelAddress,
		}).Info("Scoring service listening")
		return srv.Serve(lis)
	},
}
