// Package processor turns bridge events and hub signature batches into order
// state changes.
package processor

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/pushchain/bridge-oracle/oracleClient/chains/svm"
	"github.com/pushchain/bridge-oracle/oracleClient/metrics"
	"github.com/pushchain/bridge-oracle/oracleClient/orders"
	"github.com/pushchain/bridge-oracle/oracleClient/signer"
	"github.com/pushchain/bridge-oracle/oracleClient/store"
)

// Origin names the feed an event arrived through.
type Origin string

const (
	OriginWebsocket Origin = "ws"
	OriginHub       Origin = "hub"
)

// ErrOrderFinalized is returned when an override targets a finalized order.
var ErrOrderFinalized = errors.New("order already finalized")

// OrderSigner signs the canonical form of an order.
type OrderSigner interface {
	SignOrder(fields signer.OrderFields) (string, error)
}

// EventValidator confirms a hub reported event on chain.
type EventValidator interface {
	Validate(ctx context.Context, claim svm.EventClaim) error
}

// CursorStore persists feed positions.
type CursorStore interface {
	LoadCursor(name string) (string, error)
	SaveCursor(name, cursor string) error
}

// Config holds the processor settings.
type Config struct {
	Threshold    int
	CursorName   string // defaults to "hub_events"
	MaxDeferrals int    // rounds an unverifiable hub event may hold the cursor, defaults to 5
}

// Processor applies events to the orders repository. HandleEvent calls are
// serialized so feeds never interleave reads and writes for the same nonce.
type Processor struct {
	repo      *orders.Repository
	signer    OrderSigner
	validator EventValidator
	cursors   CursorStore
	threshold int64

	cursorName   string
	cursorMu     sync.Mutex
	cursor       int64
	maxDeferrals int
	deferredID   int64
	deferrals    int

	eventMu sync.Mutex
	logger  zerolog.Logger
}

// New creates a processor and restores the persisted hub event cursor.
func New(cfg Config, repo *orders.Repository, s OrderSigner, v EventValidator, cursors CursorStore, logger zerolog.Logger) (*Processor, error) {
	if cfg.Threshold < 1 {
		return nil, fmt.Errorf("signature threshold must be at least 1, got %d", cfg.Threshold)
	}
	if cfg.CursorName == "" {
		cfg.CursorName = "hub_events"
	}
	if cfg.MaxDeferrals <= 0 {
		cfg.MaxDeferrals = 5
	}
	p := &Processor{
		repo:         repo,
		signer:       s,
		validator:    v,
		cursors:      cursors,
		threshold:    int64(cfg.Threshold),
		cursorName:   cfg.CursorName,
		maxDeferrals: cfg.MaxDeferrals,
		logger:       logger.With().Str("component", "processor").Logger(),
	}

	saved, err := cursors.LoadCursor(cfg.CursorName)
	if err != nil {
		return nil, err
	}
	if saved != "" {
		if p.cursor, err = strconv.ParseInt(saved, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid persisted cursor %q: %w", saved, err)
		}
	}
	return p, nil
}

// ListenerHandler adapts HandleEvent to the websocket listener callback.
func (p *Processor) ListenerHandler() svm.EventHandler {
	return func(ctx context.Context, ev *svm.DecodedEvent, txSignature string) {
		if err := p.HandleEvent(ctx, ev, OriginWebsocket, txSignature); err != nil {
			p.logger.Error().Err(err).
				Str("kind", ev.Kind.String()).
				Str("nonce", ev.Nonce().Hex()).
				Str("tx_signature", txSignature).
				Msg("failed to handle websocket event")
		}
	}
}

// HandleEvent applies one decoded bridge event.
func (p *Processor) HandleEvent(ctx context.Context, ev *svm.DecodedEvent, origin Origin, txSignature string) error {
	if ev == nil {
		return errors.New("nil event")
	}
	p.eventMu.Lock()
	defer p.eventMu.Unlock()

	switch ev.Kind {
	case svm.KindOutbound:
		return p.handleOutbound(ev.Outbound, origin, txSignature)
	case svm.KindOverrideOutbound:
		return p.handleOverride(ev.OverrideOutbound)
	case svm.KindInbound:
		return p.handleInbound(ev.Inbound)
	}
	return fmt.Errorf("unsupported event kind %d", ev.Kind)
}

func (p *Processor) handleOutbound(ev *svm.OutboundEvent, origin Origin, txSignature string) error {
	nonce := ev.Nonce.Hex()
	existing, err := p.repo.FindBySourceNonce(nonce)
	if err != nil {
		return err
	}
	if existing != nil {
		metrics.DuplicateEvents.WithLabelValues(string(origin)).Inc()
		p.logger.Debug().Str("nonce", nonce).Str("origin", string(origin)).Msg("order already exists")
		return nil
	}

	signature, err := p.signer.SignOrder(orderFields(ev))
	if err != nil {
		return errors.Wrapf(err, "failed to sign order for nonce %s", nonce)
	}
	payload, err := newSolanaOutboundPayload(ev, txSignature).encode()
	if err != nil {
		return err
	}

	order := &store.Order{
		Source:        store.ChainSolana,
		Dest:          store.ChainQubic,
		From:          ev.From.String(),
		To:            hex.EncodeToString(ev.To[:]),
		Amount:        strconv.FormatUint(ev.Amount, 10),
		RelayerFee:    strconv.FormatUint(ev.RelayerFee, 10),
		Signature:     signature,
		Status:        store.StatusPending,
		SourceNonce:   nonce,
		SourcePayload: payload,
	}
	if err := p.repo.Create(order); err != nil {
		if errors.Is(err, orders.ErrDuplicateOrder) {
			metrics.DuplicateEvents.WithLabelValues(string(origin)).Inc()
			return nil
		}
		return err
	}
	metrics.OrdersCreated.WithLabelValues(string(origin)).Inc()
	return nil
}

func (p *Processor) handleOverride(ev *svm.OverrideOutboundEvent) error {
	nonce := ev.Nonce.Hex()
	order, err := p.repo.FindBySourceNonce(nonce)
	if err != nil {
		return err
	}
	if order == nil {
		metrics.OverrideFailures.WithLabelValues("not_found").Inc()
		return errors.Wrapf(orders.ErrOrderNotFound, "override for nonce %s", nonce)
	}
	if order.Status == store.StatusFinalized {
		metrics.OverrideFailures.WithLabelValues("finalized").Inc()
		return errors.Wrapf(ErrOrderFinalized, "override for order %s", order.ID)
	}

	source, txSignature, err := parseSourcePayload(order.SourcePayload)
	if err != nil {
		metrics.OverrideFailures.WithLabelValues("corrupt_payload").Inc()
		return errors.Wrapf(err, "override for order %s", order.ID)
	}

	source.To = ev.To
	source.RelayerFee = ev.RelayerFee
	signature, err := p.signer.SignOrder(orderFields(source))
	if err != nil {
		metrics.OverrideFailures.WithLabelValues("sign").Inc()
		return errors.Wrapf(err, "failed to re-sign order %s", order.ID)
	}
	payload, err := newSolanaOutboundPayload(source, txSignature).encode()
	if err != nil {
		return err
	}

	to := hex.EncodeToString(ev.To[:])
	fee := strconv.FormatUint(ev.RelayerFee, 10)
	updated, err := p.repo.ApplyOverride(order.ID, orders.OrderUpdate{
		To:            &to,
		RelayerFee:    &fee,
		Signature:     &signature,
		SourcePayload: &payload,
	})
	if err != nil {
		metrics.OverrideFailures.WithLabelValues("storage").Inc()
		return err
	}
	if updated == nil {
		metrics.OverrideFailures.WithLabelValues("not_found").Inc()
		return errors.Wrapf(orders.ErrOrderNotFound, "override for order %s", order.ID)
	}

	metrics.OverridesApplied.Inc()
	p.logger.Info().
		Str("order_id", order.ID).
		Str("to", to).
		Str("relayer_fee", fee).
		Msg("applied override, quorum reset")
	return nil
}

func (p *Processor) handleInbound(ev *svm.InboundEvent) error {
	nonce := ev.Nonce.Hex()
	order, err := p.repo.MarkFinalizedByNonce(nonce)
	if err != nil {
		return err
	}
	if order == nil {
		p.logger.Debug().Str("nonce", nonce).Msg("no order for inbound event")
		return nil
	}
	metrics.OrdersFinalized.Inc()
	p.logger.Info().Str("order_id", order.ID).Msg("order finalized")
	return nil
}

func orderFields(ev *svm.OutboundEvent) signer.OrderFields {
	return signer.OrderFields{
		NetworkIn:   uint64(ev.NetworkIn),
		NetworkOut:  uint64(ev.NetworkOut),
		TokenIn:     ev.TokenIn.Bytes(),
		TokenOut:    ev.TokenOut.Bytes(),
		FromAddress: ev.From.Bytes(),
		ToAddress:   append([]byte(nil), ev.To[:]...),
		Amount:      strconv.FormatUint(ev.Amount, 10),
		RelayerFee:  strconv.FormatUint(ev.RelayerFee, 10),
		Nonce:       append([]byte(nil), ev.Nonce[:]...),
	}
}
