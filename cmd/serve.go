package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"voicebridge/internal/config"
	"voicebridge/internal/gateway"
	"voicebridge/internal/provider/factory"
	"voicebridge/internal/registry"
	"voicebridge/internal/router"
	"voicebridge/internal/runpod"
	"voicebridge/internal/server"
)

const serveUsage = `Usage:
  voicebridge serve [--config <path>] [--port <port>]

Flags:
  --config string   Path to YAML configuration file (default ~/.voicebridge/config.yaml)
  --port   int      Override server port from configuration`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath string
	var overridePort int
	fs.StringVar(&cfgPath, "config", config.DefaultPath(), "path to configuration file")
	fs.IntVar(&overridePort, "port", 0, "override server port")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	reg := registry.New(cfg, cfgPath)

	httpClient := factory.NewHTTPClient(0)
	rt, err := router.New(reg, httpClient)
	if err != nil {
		return err
	}

	var chat router.Chatter = rt
	if rl := cfg.LLM.RateLimit; rl != nil {
		limiterCfg := router.DefaultRateLimiterConfig
		limiterCfg.RequestsPerMinute = rl.RequestsPerMinute
		limiterCfg.Burst = rl.Burst
		if rl.MaxRetries > 0 {
			limiterCfg.MaxRetries = rl.MaxRetries
		}
		chat, err = router.NewRateLimited(rt, limiterCfg)
		if err != nil {
			return err
		}
	}

	jobs := runpod.New(httpClient, "", 0, 0)

	srv, err := server.New(cfg.Server, server.Deps{
		Registry:    reg,
		Chat:        chat,
		Models:      rt,
		Transcriber: gateway.NewTranscriber(reg, jobs),
		Synthesizer: gateway.NewSynthesizer(reg, jobs),
	})
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
