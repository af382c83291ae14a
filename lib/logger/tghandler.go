package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Notifier delivers alert text to administrators.
type Notifier interface {
	NotifyAdmins(msg string)
}

// TelegramHandler is a slog.Handler that forwards records at or above
// minLevel to a Notifier after passing them to the wrapped handler.
type TelegramHandler struct {
	handler  slog.Handler
	notifier Notifier
	minLevel slog.Level
	mu       *sync.Mutex
	attrs    []slog.Attr
	group    string
}

func NewTelegramHandler(handler slog.Handler, notifier Notifier, minLevel slog.Level) *TelegramHandler {
	return &TelegramHandler{
		handler:  handler,
		notifier: notifier,
		minLevel: minLevel,
		mu:       &sync.Mutex{},
		attrs:    make([]slog.Attr, 0),
	}
}

// WithTelegram returns a logger whose records also reach the notifier
func WithTelegram(log *slog.Logger, notifier Notifier, minLevel slog.Level) *slog.Logger {
	if notifier == nil {
		return log
	}
	return slog.New(NewTelegramHandler(log.Handler(), notifier, minLevel))
}

func (h *TelegramHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *TelegramHandler) Handle(ctx context.Context, record slog.Record) error {
	err := h.handler.Handle(ctx, record)
	if err != nil {
		return err
	}
	if record.Level < h.minLevel || h.notifier == nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.notifier.NotifyAdmins(h.format(record))
	return nil
}

func (h *TelegramHandler) format(record slog.Record) string {
	var sb strings.Builder
	if h.group != "" {
		sb.WriteString(fmt.Sprintf("%s %s.%s", record.Level.String(), h.group, record.Message))
	} else {
		sb.WriteString(fmt.Sprintf("%s %s", record.Level.String(), record.Message))
	}
	for _, attr := range h.attrs {
		sb.WriteString(fmt.Sprintf("\n%s: %v", attr.Key, attr.Value))
	}
	record.Attrs(func(attr slog.Attr) bool {
		sb.WriteString(fmt.Sprintf("\n%s: %v", attr.Key, attr.Value))
		return true
	})
	return sb.String()
}

func (h *TelegramHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)

	return &TelegramHandler{
		handler:  h.handler.WithAttrs(attrs),
		notifier: h.notifier,
		minLevel: h.minLevel,
		mu:       h.mu,
		attrs:    newAttrs,
		group:    h.group,
	}
}

func (h *TelegramHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}

	return &TelegramHandler{
		handler:  h.handler.WithGroup(name),
		notifier: h.notifier,
		minLevel: h.minLevel,
		mu:       h.mu,
		attrs:    h.attrs,
		group:    group,
	}
}
