package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/wkimage/internal/server"
	"github.com/matzehuels/wkimage/pkg/observability/prom"
	"github.com/matzehuels/wkimage/pkg/render"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr      string
	noCache   bool
	noMetrics bool
}

// serveCommand creates the serve command, which runs the HTTP API until the
// process is interrupted.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the render API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = opts.addr
			}

			rt, err := c.runtimeFor(cfg)
			if err != nil {
				return err
			}
			store := c.newCache(ctx, cfg, opts.noCache)
			defer store.Close()

			runner := render.NewRunner(rt, store, nil, c.Logger)
			if cfg.Cache.TTL > 0 {
				runner.TTL = cfg.Cache.TTL
			}

			srvOpts := []server.Option{
				server.WithLogger(c.Logger),
				server.WithDefaults(&cfg.Image),
				server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
				server.WithRequestTimeout(cfg.Server.RequestTimeout),
			}
			if !opts.noMetrics {
				reg := prometheus.NewRegistry()
				reg.MustRegister(
					collectors.NewGoCollector(),
					collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
				)
				prom.New(reg).Install()
				srvOpts = append(srvOpts, server.WithMetrics(reg))
			}

			printInfo("Serving on %s", StyleHighlight.Render(cfg.Server.Addr))
			printNextStep("Try", `curl -d '{"html":"<h1>hi</h1>"}' http://localhost`+portOf(cfg.Server.Addr)+`/v1/render -o hi.png`)

			return server.New(runner, srvOpts...).ListenAndServe(ctx, cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the render cache")
	cmd.Flags().BoolVar(&opts.noMetrics, "no-metrics", false, "do not serve /metrics")

	return cmd
}

// portOf returns the ":port" suffix of a listen address.
func portOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[i:]
		}
	}
	return ""
}
