package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/animalet/sargantana-discovery/pkg/bootstrap"
	"github.com/animalet/sargantana-discovery/pkg/config"
	"github.com/animalet/sargantana-discovery/pkg/server"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Version information set during build
var (
	version = "dev"
)

// properties collects repeated -set flags.
type properties []string

func (p *properties) String() string {
	return strings.Join(*p, ",")
}

func (p *properties) Set(value string) error {
	if !strings.Contains(value, "=") {
		return errors.Errorf("expected key=value, got %q", value)
	}
	*p = append(*p, value)
	return nil
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		NoColor:    false,
		TimeFormat: "2006-01-02 15:04:05",
	})

	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatal().Err(err).Msg("Bootstrap failed")
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("sargantana-discovery", flag.ContinueOnError)
	showVersion := flags.Bool("version", false, "Show version information")
	debugMode := flags.Bool("debug", false, "Enable debug mode")
	configFile := flags.String("config", "", "Path to configuration file")
	serve := flags.Bool("serve", false, "Serve the status endpoints until interrupted")
	var overrides properties
	flags.Var(&overrides, "set", "Override a property, key=value (repeatable)")

	if err := flags.Parse(args); err != nil {
		return err
	}

	server.SetDebug(*debugMode)

	if *showVersion {
		_, err := fmt.Fprintf(stdout, "%s %s\n", "sargantana-discovery", version)
		return err
	}

	cfg, err := readConfig(*configFile, overrides)
	if err != nil {
		return err
	}

	bc, err := bootstrap.Load(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to bootstrap")
	}

	if !*serve {
		defer func() {
			if err := bc.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to release bootstrap resources")
			}
		}()
		return printEndpoint(stdout, bc)
	}

	serverCfg, err := config.Get[server.WebServerConfig](ctx, cfg, "server")
	if err != nil {
		_ = bc.Close()
		return errors.Wrap(err, "failed to load server configuration")
	}
	if serverCfg == nil {
		serverCfg = &server.WebServerConfig{}
	}
	return serveUntilSignal(server.NewServer(*serverCfg, bc), bc)
}

// serveUntilSignal runs srv until it is interrupted. The server closes bc on
// shutdown; when it never starts, bc is closed here.
func serveUntilSignal(srv *server.Server, bc *bootstrap.Context) error {
	if err := srv.Start(); err != nil {
		if closeErr := bc.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to release bootstrap resources")
		}
		return errors.Wrap(err, "failed to start server")
	}
	return srv.WaitForSignal()
}

func readConfig(file string, overrides []string) (*config.Config, error) {
	if file == "" {
		if len(overrides) == 0 {
			return nil, errors.New("either -config or -set is required")
		}
		return config.NewConfigFromProperties(overrides...)
	}

	cfg, err := config.NewConfig(file)
	if err != nil {
		return nil, err
	}
	if err = cfg.Apply(overrides...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printEndpoint(stdout io.Writer, bc *bootstrap.Context) error {
	endpoint := bc.VaultEndpoint()
	if endpoint == nil {
		return errors.New("no vault section configured")
	}
	_, err := fmt.Fprintln(stdout, endpoint.String())
	return err
}
