package trace

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// Transport sends one probe and waits for its answer.
// Implementations apply their own per-probe timeout and report it through
// Response.TimedOut rather than as an error.
type Transport interface {
	Send(ctx context.Context, dest net.IP, ttl int) (Response, error)

	// Name returns the probe method name (e.g., "icmp").
	Name() string
}

// Sink receives run events in order. Hop is called exactly once per probe,
// and at most one of RunAborted or RunCompleted is called per run.
type Sink interface {
	RunStarted(dest Destination, maxHops int)
	Hop(hop HopRecord)
	RunAborted(result *Result)
	RunCompleted(result *Result)
}

// HopEnricher decorates a responding hop with hostname, ASN and geo data.
type HopEnricher interface {
	EnrichHop(ctx context.Context, hop *HopRecord)
}

// HopProber drives the sequential TTL loop for one destination.
type HopProber struct {
	config    *Config
	transport Transport
	sink      Sink
	enricher  HopEnricher
}

// NewHopProber creates a HopProber. A nil sink discards events and a nil
// enricher leaves hops as reported by the transport.
func NewHopProber(config *Config, transport Transport, sink Sink, enricher HopEnricher) (*HopProber, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	if sink == nil {
		sink = nopSink{}
	}

	return &HopProber{
		config:    config,
		transport: transport,
		sink:      sink,
		enricher:  enricher,
	}, nil
}

// Run probes dest with TTL 1, 2, ... until the destination answers, the
// consecutive timeout limit is hit, or the TTL reaches MaxHops.
//
// Terminal outcomes are reported through Result.State. An error is returned
// only when the context is cancelled (ErrInterrupted) or the transport fails
// for a reason other than a timeout (ErrProbeFailed); the partial result is
// returned alongside it.
func (p *HopProber) Run(ctx context.Context, dest Destination) (*Result, error) {
	log := zerolog.Ctx(ctx).With().Str("destination", dest.IP.String()).Logger()

	result := &Result{
		Destination:            dest,
		MaxHops:                p.config.MaxHops,
		MaxConsecutiveTimeouts: p.config.MaxConsecutiveTimeouts,
		Timestamp:              time.Now(),
		Hops:                   make([]HopRecord, 0, p.config.MaxHops),
		State:                  StateProbing,
	}

	p.sink.RunStarted(dest, p.config.MaxHops)

	state := newTraceState()
	for !state.DestinationReached && state.CurrentTTL < p.config.MaxHops {
		if err := ctx.Err(); err != nil {
			return p.finish(result), fmt.Errorf("%w at ttl %d: %w", ErrInterrupted, state.CurrentTTL, err)
		}

		resp, err := p.transport.Send(ctx, dest.IP, state.CurrentTTL)
		if err != nil {
			if ctx.Err() != nil {
				return p.finish(result), fmt.Errorf("%w at ttl %d: %w", ErrInterrupted, state.CurrentTTL, ctx.Err())
			}
			return p.finish(result), fmt.Errorf("%w at ttl %d: %w", ErrProbeFailed, state.CurrentTTL, err)
		}

		// A timeout that coincides with cancellation is the cancellation.
		if resp.TimedOut && ctx.Err() != nil {
			return p.finish(result), fmt.Errorf("%w at ttl %d: %w", ErrInterrupted, state.CurrentTTL, ctx.Err())
		}

		hop := HopRecord{
			Number:  state.CurrentTTL,
			Outcome: state.observe(resp),
		}
		if hop.Outcome == OutcomeResponse {
			hop.IP = resp.Host
			hop.RTT = resp.RTT
			hop.Destination = resp.Succeeded
			if p.enricher != nil {
				p.enricher.EnrichHop(ctx, &hop)
			}
		}

		log.Debug().
			Int("ttl", hop.Number).
			Stringer("outcome", hop.Outcome).
			Int("consecutive_timeouts", state.ConsecutiveTimeouts).
			Bool("reached", state.DestinationReached).
			Msg("probe")

		result.Hops = append(result.Hops, hop)
		p.sink.Hop(hop)

		if state.ConsecutiveTimeouts >= p.config.MaxConsecutiveTimeouts {
			result.State = StateAborted
			log.Debug().Int("ttl", hop.Number).Msg("consecutive timeout limit reached")
			p.sink.RunAborted(p.finish(result))
			return result, nil
		}

		if state.DestinationReached {
			break
		}
		state.CurrentTTL++
	}

	if state.DestinationReached {
		result.State = StateSucceeded
	} else {
		result.State = StateExhausted
	}
	p.sink.RunCompleted(p.finish(result))

	return result, nil
}

// finish fills the summary and probe method of a result. The method is read
// last because it can depend on the family of the probes sent.
func (p *HopProber) finish(result *Result) *Result {
	result.ProbeMethod = p.transport.Name()
	result.Summary = summarize(result.Hops)
	return result
}

type nopSink struct{}

func (nopSink) RunStarted(Destination, int) {}
func (nopSink) Hop(HopRecord)               {}
func (nopSink) RunAborted(*Result)          {}
func (nopSink) RunCompleted(*Result)        {}
