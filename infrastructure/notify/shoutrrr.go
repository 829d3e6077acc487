// Package notify provides notification channel senders.
package notify

import (
	"context"
	"fmt"
	"io"
	"log"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/trialpulse/trialpulse/domain/notify"
	"github.com/trialpulse/trialpulse/internal/config"
)

// ShoutrrrSender delivers messages through one or more shoutrrr service
// URLs (gotify, telegram, smtp and the rest of the shoutrrr catalogue).
// One sender fans out to every configured URL.
type ShoutrrrSender struct {
	name   string
	router *router.ServiceRouter
}

// NewShoutrrrSender creates a ShoutrrrSender from config. URL validation
// happens here so a bad URL fails startup, not the first send.
func NewShoutrrrSender(name string, cfg config.NotifyConfig) (*ShoutrrrSender, error) {
	urls := cfg.URLs()
	if len(urls) == 0 {
		return nil, fmt.Errorf("shoutrrr sender needs at least one URL")
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("create shoutrrr sender: %w", err)
	}
	sender.Timeout = cfg.Timeout()
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &ShoutrrrSender{name: name, router: sender}, nil
}

// Name returns the sender name.
func (s *ShoutrrrSender) Name() string { return s.name }

// Send delivers one rendered message to every configured URL. The first
// per-URL error is returned; the router handles its own timeouts.
func (s *ShoutrrrSender) Send(_ context.Context, msg notify.Message) error {
	params := types.Params{}
	params.SetTitle(msg.Title())

	for _, err := range s.router.Send(msg.Body(), &params) {
		if err != nil {
			return fmt.Errorf("send via %s: %w", s.name, err)
		}
	}
	return nil
}
