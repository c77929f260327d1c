package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"

	pb "github.com/apogeecmb/smartSprinkler/grpc/irrigation"
	"github.com/apogeecmb/smartSprinkler/internal/services/device"
	"github.com/apogeecmb/smartSprinkler/pkg/logx"
	"github.com/apogeecmb/smartSprinkler/pkg/rabbitmq"
)

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func main() {
	log := logx.NewConsole(env("LOG_LEVEL", "info")).With(logx.String("service", "device"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	grpcPort := env("GRPC_PORT", "50051")
	topicTmpl := env("EVENT_STATECHANGE_TEMPLATE", "sprinkler/zone/{zone}/state")
	tick, err := time.ParseDuration(env("TICK_INTERVAL", "1s"))
	if err != nil {
		log.Error("invalid TICK_INTERVAL", logx.Err(err))
		os.Exit(1)
	}

	// MQTT is optional: without RABBITMQ_HOST state changes are only logged.
	var factory device.PublisherFactory
	if host := env("RABBITMQ_HOST", ""); host != "" {
		rmqc := &rabbitmq.RabbitMQConfig{
			Host:     host,
			Port:     envInt("RABBITMQ_PORT", 1883),
			User:     env("RABBITMQ_USER", "guest"),
			Password: env("RABBITMQ_PASSWORD", "guest"),
			ClientID: env("RABBITMQ_CLIENTID", fmt.Sprintf("device-%s", env("HOSTNAME", "local"))),
		}
		client, err := rabbitmq.NewRabbitMQConn(ctx, rmqc, log)
		if err != nil {
			log.Error("mqtt connect", logx.Err(err))
			os.Exit(1)
		}
		factory = func(topic string) rabbitmq.IPublisher {
			return rabbitmq.NewPublisher(client, topic, 1)
		}
	}

	sim := device.NewSimulator(factory, topicTmpl, log)
	go sim.Run(ctx, tick)

	addr := ":" + grpcPort
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("listen", logx.String("addr", addr), logx.Err(err))
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	pb.RegisterDeviceServiceServer(grpcServer, device.NewGrpcHandler(sim))

	go func() {
		log.Info("device service listening", logx.String("addr", addr), logx.String("topic_template", topicTmpl))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("grpc serve", logx.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	grpcServer.GracefulStop()
}
