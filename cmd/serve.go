package cmd

import (
	"fmt"

	"github.com/Emyrk/profgraph/serve"

	"github.com/coder/serpent"
)

func (r *Root) ServeCmd() *serpent.Command {
	var (
		configPath string
		listen     string
	)
	return &serpent.Command{
		Use:   "serve",
		Short: "Render uploaded profiles over HTTP and export metrics about them.",
		Options: serpent.OptionSet{
			serpent.Option{
				Name:          "config",
				Description:   "YAML config file to use. Built in defaults are used when empty.",
				Required:      false,
				Flag:          "config",
				FlagShorthand: "c",
				Env:           "PROFGRAPH_CONFIG",
				Value:         serpent.StringOf(&configPath),
			},
			serpent.Option{
				Name:        "listen",
				Description: "Address to listen on. Overrides the config file.",
				Flag:        "listen",
				Env:         "PROFGRAPH_LISTEN",
				Value:       serpent.StringOf(&listen),
			},
		},
		Handler: func(i *serpent.Invocation) error {
			logger := r.Logger(i)
			ctx := i.Context()

			config := serve.DefaultConfig()
			if configPath != "" {
				var err error
				config, err = serve.ReadConfig(configPath)
				if err != nil {
					logger.Error().Err(err).Str("config", configPath).Msg("read config")
					return err
				}
			}
			if listen != "" {
				config.Listen = listen
			}

			srv, err := serve.New(config, logger.With().Str("service", "serve").Logger())
			if err != nil {
				logger.Error().Err(err).Msg("new server")
				return fmt.Errorf("new server: %w", err)
			}
			return srv.ListenAndServe(ctx)
		},
	}
}
