package processor

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/pushchain/bridge-oracle/oracleClient/chains/svm"
	oerrors "github.com/pushchain/bridge-oracle/oracleClient/errors"
	"github.com/pushchain/bridge-oracle/oracleClient/hub"
	"github.com/pushchain/bridge-oracle/oracleClient/metrics"
	"github.com/pushchain/bridge-oracle/oracleClient/orders"
	"github.com/pushchain/bridge-oracle/oracleClient/poller"
)

// Cursor returns the id of the last hub event handled.
func (p *Processor) Cursor() int64 {
	p.cursorMu.Lock()
	defer p.cursorMu.Unlock()
	return p.cursor
}

func (p *Processor) advanceCursor(to int64) error {
	p.cursorMu.Lock()
	defer p.cursorMu.Unlock()
	if to <= p.cursor {
		return nil
	}
	if err := p.cursors.SaveCursor(p.cursorName, strconv.FormatInt(to, 10)); err != nil {
		return err
	}
	p.cursor = to
	return nil
}

// HandleHubEvents validates each hub reported event against Solana and
// applies the ones that check out. Failures of a single event are logged and
// skipped, except transient validation failures: those stop the batch so the
// cursor does not move past an event that may still become visible.
func (p *Processor) HandleHubEvents(ctx context.Context, page *hub.EventsPage) error {
	if page == nil {
		return nil
	}
	next := p.Cursor()
	for _, stored := range page.Data {
		if ctx.Err() != nil {
			return p.advanceCursor(next)
		}
		log := p.logger.With().Int64("event_id", stored.ID).Str("tx_signature", stored.Signature).Logger()

		ev, err := decodeStoredEvent(stored)
		if err != nil {
			metrics.HubEvents.WithLabelValues("malformed").Inc()
			log.Warn().Err(err).Msg("skipping malformed hub event")
			next = max(next, stored.ID)
			continue
		}

		err = p.validator.Validate(ctx, svm.EventClaim{Signature: stored.Signature, Chain: stored.Chain, Event: ev})
		if err != nil {
			if ctx.Err() != nil {
				return p.advanceCursor(next)
			}
			if oerrors.IsRetryable(err) && p.deferEvent(stored.ID) {
				metrics.HubEvents.WithLabelValues("deferred").Inc()
				log.Warn().Err(err).Msg("hub event not yet verifiable, retrying next round")
				return p.advanceCursor(next)
			}
			metrics.HubEvents.WithLabelValues("rejected").Inc()
			log.Warn().Err(err).Msg("hub event failed on-chain validation")
			next = max(next, stored.ID)
			continue
		}

		if err := p.HandleEvent(ctx, ev, OriginHub, stored.Signature); err != nil {
			metrics.HubEvents.WithLabelValues("failed").Inc()
			log.Error().Err(err).Str("kind", ev.Kind.String()).Msg("failed to apply hub event")
		} else {
			metrics.HubEvents.WithLabelValues("applied").Inc()
		}
		next = max(next, stored.ID)
	}
	return p.advanceCursor(max(next, page.Cursor))
}

// deferEvent records one more deferral of event id and reports whether the
// event may be retried in a later round.
func (p *Processor) deferEvent(id int64) bool {
	p.cursorMu.Lock()
	defer p.cursorMu.Unlock()
	if p.deferredID != id {
		p.deferredID, p.deferrals = id, 0
	}
	p.deferrals++
	return p.deferrals <= p.maxDeferrals
}

func decodeStoredEvent(stored hub.StoredEvent) (*svm.DecodedEvent, error) {
	kind, err := svm.ParseEventKind(stored.Type)
	if err != nil {
		return nil, err
	}
	return svm.ParseEventPayload(kind, stored.Payload)
}

// ApplySignatureBatches records peer signatures and marks orders ready for
// relay once the cumulative distinct signature count reaches the threshold.
// A failing order never stops the rest of the batch.
func (p *Processor) ApplySignatureBatches(ctx context.Context, batches []hub.SignatureBatch) {
	for _, batch := range batches {
		if ctx.Err() != nil {
			return
		}
		if err := p.applySignatureBatch(batch); err != nil {
			if errors.Is(err, orders.ErrOrderNotFound) {
				p.logger.Debug().Str("order_id", batch.OrderID).Msg("signatures for unknown order")
				continue
			}
			p.logger.Error().Err(err).Str("order_id", batch.OrderID).Msg("failed to apply signature batch")
		}
	}
}

func (p *Processor) applySignatureBatch(batch hub.SignatureBatch) error {
	inserted, err := p.repo.AddSignatures(batch.OrderID, batch.Signatures)
	if err != nil {
		return err
	}
	metrics.SignaturesAdded.Add(float64(len(inserted)))

	count, err := p.repo.CountSignatures(batch.OrderID)
	if err != nil {
		return err
	}
	if count < p.threshold {
		return nil
	}

	order, err := p.repo.FindByID(batch.OrderID)
	if err != nil {
		return err
	}
	if order == nil || order.OracleAcceptToRelay {
		return nil
	}
	if _, err := p.repo.MarkReadyForRelay(batch.OrderID); err != nil {
		return err
	}
	metrics.OrdersReady.Inc()
	p.logger.Info().
		Str("order_id", batch.OrderID).
		Int64("signatures", count).
		Int64("threshold", p.threshold).
		Msg("order reached quorum")
	return nil
}

// OnEventsRound is the hub event poller's round callback.
func (p *Processor) OnEventsRound(ctx context.Context, page *hub.EventsPage, ok bool, rc poller.RoundContext) {
	if !ok {
		p.logger.Warn().Uint64("round", rc.Round).Msg("no hub answered the events poll")
		return
	}
	if err := p.HandleHubEvents(ctx, page); err != nil {
		p.logger.Error().Err(err).Str("hub", rc.Used).Msg("failed to persist hub event cursor")
	}
}

// OnSignaturesRound is the hub signature poller's round callback.
func (p *Processor) OnSignaturesRound(ctx context.Context, page *hub.SignaturesPage, ok bool, rc poller.RoundContext) {
	if !ok {
		p.logger.Warn().Uint64("round", rc.Round).Msg("no hub answered the signatures poll")
		return
	}
	if page == nil {
		return
	}
	p.ApplySignatureBatches(ctx, page.Data)
}
