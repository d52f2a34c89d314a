// Package relay bridges page contexts and the remote analysis service.
//
// The relay and each page context are independent actors: they share no
// state and communicate only through typed channels. The relay listens for
// extraction events, issues one analysis request per event, and delivers
// the outcome back to the page context that originated the event — never
// to any other.
package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/raine/ebay-specifics/internal/analysis"
	"github.com/raine/ebay-specifics/internal/extract"
	"github.com/raine/ebay-specifics/internal/specifics"
	"github.com/rs/zerolog/log"
)

// Result event types delivered to page contexts.
const (
	EventSpecificsResult = "SPECIFICS_RESULT"
	EventSpecificsFailed = "SPECIFICS_FAILED"
)

// FailureKind classifies why an analysis request produced no result.
type FailureKind string

const (
	// FailureTransport covers requests that could not be sent or whose
	// response could not be read.
	FailureTransport FailureKind = "transport"
	// FailureContract covers responses that violate the analysis contract:
	// bad status, non-JSON body, or a body without itemSpecifics.
	FailureContract FailureKind = "contract"
)

// ResultEvent is delivered to the originating page context once its
// analysis request reaches a terminal state. Exactly one of Data and
// Failure is set.
type ResultEvent struct {
	Type      string
	RequestID string
	Data      specifics.AttributeSet
	Failure   FailureKind
}

// Analyzer is the outbound side of the relay, satisfied by
// analysis.Client.
type Analyzer interface {
	Analyze(ctx context.Context, imageURL string) (*specifics.AnalysisResult, error)
}

// resultBuffer bounds how many undelivered events a page context holds.
// A page that stopped reading never blocks the relay; see deliver.
const resultBuffer = 4

// PageContext models one page/tab registered with the relay. Results are
// read from Results; Close models navigation away, after which deliveries
// are dropped.
type PageContext struct {
	id        string
	results   chan ResultEvent
	done      chan struct{}
	closeOnce sync.Once
}

// ID returns the context's identifier.
func (pc *PageContext) ID() string {
	return pc.id
}

// Results is the context-scoped result channel. Only events for requests
// this context originated ever appear on it.
func (pc *PageContext) Results() <-chan ResultEvent {
	return pc.results
}

// Close marks the context as gone. In-flight requests keep running (there
// is no cancellation path); their results become unroutable and are
// dropped.
func (pc *PageContext) Close() {
	pc.closeOnce.Do(func() {
		close(pc.done)
	})
}

// Relay receives extraction events and turns each into an independent
// analysis request. It is reentrant: concurrent events from any number of
// contexts each get their own request/response pairing, with no
// deduplication or admission control.
type Relay struct {
	client Analyzer
	wg     sync.WaitGroup
}

// New creates a relay that issues requests through client.
func New(client Analyzer) *Relay {
	return &Relay{client: client}
}

// Register creates a new page context. The caller owns its lifecycle and
// must Close it when the page goes away.
func (r *Relay) Register() *PageContext {
	return &PageContext{
		id:      uuid.NewString(),
		results: make(chan ResultEvent, resultBuffer),
		done:    make(chan struct{}),
	}
}

// Submit accepts one extraction event from pc and issues the analysis
// request in its own goroutine. It returns the request's correlation ID
// immediately; the outcome arrives on pc.Results. The request itself is
// never cancelled once issued — ctx only bounds what the underlying
// transport honors.
func (r *Relay) Submit(ctx context.Context, pc *PageContext, ref extract.ImageReference) string {
	requestID := uuid.NewString()

	log.Info().
		Str("contextId", pc.id).
		Str("requestId", requestID).
		Str("imageUrl", ref.URL).
		Msg("relaying extraction event")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		result, err := r.client.Analyze(ctx, ref.URL)
		if err != nil {
			kind := classify(err)
			log.Error().
				Err(err).
				Str("requestId", requestID).
				Str("kind", string(kind)).
				Msg("analysis request failed")
			r.deliver(pc, ResultEvent{
				Type:      EventSpecificsFailed,
				RequestID: requestID,
				Failure:   kind,
			})
			return
		}

		r.deliver(pc, ResultEvent{
			Type:      EventSpecificsResult,
			RequestID: requestID,
			Data:      result.ItemSpecifics,
		})
	}()

	return requestID
}

// deliver routes an event to its originating context. A closed context
// makes the event unroutable and it is dropped; a context whose buffer is
// full and never drains is treated the same once it closes, so the relay
// itself never wedges on one page.
func (r *Relay) deliver(pc *PageContext, ev ResultEvent) {
	select {
	case <-pc.done:
		log.Debug().
			Str("contextId", pc.id).
			Str("requestId", ev.RequestID).
			Msg("dropping unroutable result")
		return
	default:
	}
	select {
	case <-pc.done:
		log.Debug().
			Str("contextId", pc.id).
			Str("requestId", ev.RequestID).
			Msg("dropping unroutable result")
	case pc.results <- ev:
	}
}

// Shutdown waits for in-flight requests to reach a terminal state, bounded
// by ctx.
func (r *Relay) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func classify(err error) FailureKind {
	var contractErr *analysis.ContractError
	if errors.As(err, &contractErr) {
		return FailureContract
	}
	return FailureTransport
}
