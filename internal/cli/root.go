// Package cli implements the broker's command surface: start/stop/
// restart subcommands over spf13/cobra.
package cli

import (
	"github.com/spf13/cobra"
)

// Options collects every flag broker.c's cmd_opts table exposes.
type Options struct {
	URL          string
	ConfPath     string
	BridgePath   string
	AuthPath     string
	Daemon       bool
	TQThread     int
	MaxTQThread  int
	Parallel     int
	PropertySize int
	MsqLen       int
	QoSDuration  int
	HTTPEnable   bool
	HTTPPort     int
}

// NewRootCommand builds the "nanomq broker" command tree.
func NewRootCommand() *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:   "broker",
		Short: "NanoMQ-style MQTT broker",
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Start the broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunStart(opts)
		},
	}
	bindOpts(start, opts)

	restart := &cobra.Command{
		Use:   "restart",
		Short: "Stop any running instance, then start a new one",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = RunStop()
			return RunStart(opts)
		},
	}
	bindOpts(restart, opts)

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running broker instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunStop()
		},
	}

	root.AddCommand(start, restart, stop)
	return root
}

func bindOpts(cmd *cobra.Command, opts *Options) {
	f := cmd.Flags()
	f.StringVar(&opts.URL, "url", "", "broker+tcp://ip:port or nmq+ws://ip:port")
	f.StringVar(&opts.ConfPath, "conf", "", "path to the broker configuration file")
	f.StringVar(&opts.BridgePath, "bridge", "", "path to the bridge configuration file")
	f.StringVar(&opts.AuthPath, "auth", "", "path to the authorization configuration file")
	f.BoolVarP(&opts.Daemon, "daemon", "d", false, "run as a daemon")
	f.IntVarP(&opts.TQThread, "tq_thread", "t", 0, "number of taskq threads")
	f.IntVarP(&opts.MaxTQThread, "max_tq_thread", "T", 0, "maximum number of taskq threads")
	f.IntVarP(&opts.Parallel, "parallel", "n", 0, "maximum number of outstanding requests")
	f.IntVarP(&opts.PropertySize, "property_size", "s", 0, "max size for an MQTT user property")
	f.IntVarP(&opts.MsqLen, "msq_len", "S", 0, "queue length for resending messages")
	f.IntVarP(&opts.QoSDuration, "qos_duration", "D", 0, "interval of the QoS resend timer, seconds")
	f.BoolVar(&opts.HTTPEnable, "http", false, "enable the admin HTTP server")
	f.IntVarP(&opts.HTTPPort, "port", "p", 0, "admin HTTP server port")
}
