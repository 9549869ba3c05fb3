package dnssd

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/joshuafuller/matterlink/internal/message"
	"github.com/joshuafuller/matterlink/internal/security"
	"github.com/joshuafuller/matterlink/internal/transport"
)

// ListenerOptions configures a Listener.
type ListenerOptions struct {
	// Logger receives per-packet decode/rate-limit warnings. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// RateLimitThreshold is the number of packets a source IP may send
	// per one-second window; a source that exceeds it is dropped for
	// RateLimitCooldown. Zero disables rate limiting.
	RateLimitThreshold  int
	RateLimitCooldown   time.Duration
	RateLimitMaxEntries int

	// Filter decides which decoded records are "explicit" for Cache.Ingest
	// (spec §4.4 step 1). Defaults to accepting every record.
	Filter Filter
}

func (o *ListenerOptions) setDefaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.RateLimitMaxEntries == 0 {
		o.RateLimitMaxEntries = 4096
	}
	if o.RateLimitCooldown == 0 {
		o.RateLimitCooldown = 60 * time.Second
	}
	if o.Filter == nil {
		o.Filter = func(Record) bool { return true }
	}
}

// Listener reads raw mDNS packets off a transport.Transport, decodes them
// with the wire codec, and feeds the result into a Cache. It is the real
// socket underneath what the Cache's tests otherwise drive by calling
// Ingest directly.
type Listener struct {
	cache     *Cache
	transport transport.Transport
	logger    *slog.Logger
	filter    Filter
	limiter   *security.RateLimiter
}

// NewListener constructs a Listener bound to an already-open transport.
// The caller owns closing tr; Listener.Close only stops the read loop.
func NewListener(cache *Cache, tr transport.Transport, opts ListenerOptions) *Listener {
	opts.setDefaults()

	var limiter *security.RateLimiter
	if opts.RateLimitThreshold > 0 {
		limiter = security.NewRateLimiter(opts.RateLimitThreshold, opts.RateLimitCooldown, opts.RateLimitMaxEntries)
	}

	return &Listener{
		cache:     cache,
		transport: tr,
		logger:    opts.Logger,
		filter:    opts.Filter,
		limiter:   limiter,
	}
}

// Run reads packets until ctx is done, and then returns ctx's error. A
// receive error is logged and the loop continues. Each well-formed
// packet's answer and additional sections are decoded and fed to the Cache.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		packet, addr, err := l.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn("transport receive failed", "error", err)
			continue
		}

		if l.limiter != nil && !l.limiter.Allow(sourceIP(addr)) {
			l.logger.Debug("dropped packet from rate-limited source", "source", addr)
			continue
		}

		l.handlePacket(packet, addr)
	}
}

func (l *Listener) handlePacket(packet []byte, addr net.Addr) {
	msg, err := message.ParseMessage(packet)
	if err != nil {
		l.logger.Debug("discarding unparseable packet", "source", addr, "error", err)
		return
	}

	decoded := Message{SourceInterface: sourceIP(addr)}
	for _, a := range msg.Answers {
		if r, ok := FromAnswer(a); ok {
			decoded.Answers = append(decoded.Answers, r)
		}
	}
	for _, a := range msg.Additionals {
		if r, ok := FromAnswer(a); ok {
			decoded.Additional = append(decoded.Additional, r)
		}
	}

	if len(decoded.Answers) == 0 && len(decoded.Additional) == 0 {
		return
	}
	l.cache.Ingest(decoded, l.filter)
}

// Close prunes rate-limiter entries for sources that have gone quiet. It
// does not close the underlying transport.
func (l *Listener) Close() {
	if l.limiter != nil {
		l.limiter.Cleanup()
	}
}

func sourceIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host := addr.String()
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		return host[:idx]
	}
	return host
}
