package main

import (
	"fmt"
	"log/slog"

	"github.com/trialpulse/trialpulse"
	domainnotify "github.com/trialpulse/trialpulse/domain/notify"
	"github.com/trialpulse/trialpulse/infrastructure/notify"
	"github.com/trialpulse/trialpulse/internal/config"
)

// buildSenders wires the notification channels. With shoutrrr URLs
// configured, both channels fan out through shoutrrr; without, alerts go
// to the log so development setups still see them.
func buildSenders(cfg config.AppConfig, slogger *slog.Logger) ([]trialpulse.Option, error) {
	if !cfg.Notify().Enabled() {
		return []trialpulse.Option{
			trialpulse.WithSender(domainnotify.ChannelPush, notify.NewLogSender("push", slogger)),
		}, nil
	}

	var opts []trialpulse.Option
	for _, channel := range domainnotify.AllChannels() {
		sender, err := notify.NewShoutrrrSender(channel.String(), cfg.Notify())
		if err != nil {
			return nil, fmt.Errorf("configure %s sender: %w", channel, err)
		}
		opts = append(opts, trialpulse.WithSender(channel, sender))
	}
	return opts, nil
}
