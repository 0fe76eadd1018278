package trace

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/hoptrace/hoptrace/internal/probe"
)

// Tracer resolves targets and runs a HopProber against them.
type Tracer struct {
	config    *Config
	transport Transport
	resolver  Resolver
	enricher  HopEnricher
	closer    func() error
}

// Option customizes a Tracer.
type Option func(*Tracer)

// WithTransport replaces the ICMP transport.
func WithTransport(transport Transport) Option {
	return func(t *Tracer) { t.transport = transport }
}

// WithResolver replaces the system resolver.
func WithResolver(resolver Resolver) Option {
	return func(t *Tracer) { t.resolver = resolver }
}

// WithEnricher sets the hop enricher.
func WithEnricher(enricher HopEnricher) Option {
	return func(t *Tracer) { t.enricher = enricher }
}

// New creates a new Tracer with the given configuration. Unless a transport
// is supplied, an ICMP prober is opened, which usually needs privileges.
func New(config *Config, opts ...Option) (*Tracer, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	t := &Tracer{config: config}
	for _, opt := range opts {
		opt(t)
	}

	if t.resolver == nil {
		t.resolver = NewNetResolver(config)
	}

	if t.transport == nil {
		prober, err := probe.NewICMPProber(probe.ICMPProberConfig{
			Timeout: config.Timeout,
			IPv6:    config.IPv6,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create prober: %w", err)
		}
		t.transport = NewProbeTransport(prober)
		t.closer = prober.Close
	}

	return t, nil
}

// Trace resolves target and probes it hop by hop, reporting to sink.
// A *ResolutionError is returned before any probe is sent if the target
// cannot be resolved.
func (t *Tracer) Trace(ctx context.Context, target string, sink Sink) (*Result, error) {
	log := zerolog.Ctx(ctx)

	dest, err := t.resolver.Resolve(ctx, target)
	if err != nil {
		log.Debug().Err(err).Str("target", target).Msg("resolution failed")
		return nil, err
	}
	log.Debug().Str("target", target).Str("ip", dest.IP.String()).Str("name", dest.Name).Msg("resolved")

	prober, err := NewHopProber(t.config, t.transport, sink, t.enricher)
	if err != nil {
		return nil, err
	}

	result, err := prober.Run(ctx, dest)
	if result != nil {
		result.Target = target
	}
	return result, err
}

// Close releases resources held by the tracer.
func (t *Tracer) Close() error {
	if t.closer != nil {
		return t.closer()
	}
	return nil
}

// ProbeTransport adapts a probe.Prober to the Transport interface.
type ProbeTransport struct {
	prober probe.Prober
}

// NewProbeTransport wraps prober.
func NewProbeTransport(prober probe.Prober) *ProbeTransport {
	return &ProbeTransport{prober: prober}
}

// Send sends one probe. A probe timeout is reported as Response.TimedOut,
// unless ctx is done, in which case ctx.Err() is returned.
func (t *ProbeTransport) Send(ctx context.Context, dest net.IP, ttl int) (Response, error) {
	result, err := t.prober.Probe(ctx, dest, ttl)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, ctxErr
		}
		if probe.IsTimeout(err) {
			return Response{TimedOut: true}, nil
		}
		return Response{}, err
	}

	return Response{
		Succeeded: result.Reached,
		Host:      result.ResponseIP,
		RTT:       result.RTT,
	}, nil
}

// Name returns the probe method name.
func (t *ProbeTransport) Name() string {
	return t.prober.Name()
}
