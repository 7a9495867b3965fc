// Startup banner, styled with charmbracelet/lipgloss, dumping the active
// configuration to stdout right before the listeners come up.
package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nanomq-go/nanomq/internal/config"
)

var (
	bannerPrimary = lipgloss.Color("#00ff9f")
	bannerDim     = lipgloss.Color("#6e7681")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(bannerPrimary).Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(bannerPrimary)
	dimStyle   = lipgloss.NewStyle().Foreground(bannerDim)
)

// PrintConfig renders cfg as a bordered summary block, the Go-idiom
// counterpart of broker.c's print_conf.
func PrintConfig(cfg *config.Config) {
	var b strings.Builder
	fmt.Fprintln(&b, titleStyle.Render("nanomq"))
	fmt.Fprintln(&b, field("url", cfg.URL))
	fmt.Fprintln(&b, field("parallel", fmt.Sprintf("%d", cfg.Parallel)))
	fmt.Fprintln(&b, field("taskq threads", fmt.Sprintf("%d..%d", cfg.NumTaskQThread, cfg.MaxTaskQThread)))
	fmt.Fprintln(&b, field("property size", fmt.Sprintf("%d", cfg.PropertySize)))
	fmt.Fprintln(&b, field("msq len", fmt.Sprintf("%d", cfg.MsqLen)))
	fmt.Fprintln(&b, field("qos duration", fmt.Sprintf("%ds", cfg.QoSDuration)))
	fmt.Fprintln(&b, field("allow anonymous", fmt.Sprintf("%v", cfg.AllowAnonymous)))
	fmt.Fprintln(&b, field("daemon", fmt.Sprintf("%v", cfg.Daemon)))
	if cfg.Websocket.Enable {
		fmt.Fprintln(&b, field("websocket", cfg.Websocket.URL))
	}
	if cfg.HTTPServer.Enable {
		fmt.Fprintln(&b, field("http server", fmt.Sprintf("port %d", cfg.HTTPServer.Port)))
	}
	fmt.Print(b.String())
}

// PrintBridgeConfig renders the bridge configuration, mirroring broker.c's
// print_bridge_conf; a no-op when bridging is disabled.
func PrintBridgeConfig(cfg *config.BridgeConfig) {
	if cfg == nil {
		return
	}
	var b strings.Builder
	fmt.Fprintln(&b, titleStyle.Render("bridge"))
	fmt.Fprintln(&b, field("address", cfg.Address))
	fmt.Fprintln(&b, field("client id", cfg.ClientID))
	fmt.Fprintln(&b, field("clean start", fmt.Sprintf("%v", cfg.CleanStart)))
	fmt.Fprintln(&b, field("forwards", fmt.Sprintf("%d rule(s)", len(cfg.Forwards))))
	fmt.Fprintln(&b, field("subscriptions", fmt.Sprintf("%d topic(s)", len(cfg.SubList))))
	fmt.Print(b.String())
}

func field(label, value string) string {
	return labelStyle.Render(label+":") + " " + dimStyle.Render(value)
}
