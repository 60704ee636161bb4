// Package orders is the persistent order state machine: idempotent creation
// keyed by source nonce, append-only signature aggregation and the
// pending -> ready-for-relay -> finalized transitions.
package orders

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pushchain/bridge-oracle/oracleClient/store"
)

// MaxListSize caps every list read and ByIDs request.
const MaxListSize = 100

var (
	// ErrDuplicateOrder is returned by Create when a live order already owns the source nonce.
	ErrDuplicateOrder = errors.New("order with this source nonce already exists")
	// ErrOrderNotFound is returned by operations that require an existing order.
	ErrOrderNotFound = errors.New("order not found")
	// ErrTooManyIDs is returned by ByIDs when more than MaxListSize distinct ids are requested.
	ErrTooManyIDs = errors.New("too many order ids requested")
	// ErrInvalidOrder is returned by Create for orders violating the data model.
	ErrInvalidOrder = errors.New("invalid order")
)

// orderNamespace scopes order ids derived from source nonces.
var orderNamespace = uuid.MustParse("6f1d6b1e-3c2a-4b8e-9a57-0d4c2f7e8b91")

// OrderIDForNonce derives the order id every oracle assigns to a source nonce,
// so peer signatures collected by hubs refer to the same id on all nodes.
func OrderIDForNonce(sourceNonce string) string {
	return orderIDForGeneration(sourceNonce, 0)
}

// orderIDForGeneration derives the id of the order created after generation
// earlier orders for the nonce were deleted. Generation zero is OrderIDForNonce.
func orderIDForGeneration(sourceNonce string, generation int64) string {
	name := strings.ToLower(sourceNonce)
	if generation > 0 {
		name += "/" + strconv.FormatInt(generation, 10)
	}
	return uuid.NewSHA1(orderNamespace, []byte(name)).String()
}

// OrderUpdate lists the mutable fields of an order. Nil fields are left untouched.
type OrderUpdate struct {
	To                  *string
	RelayerFee          *string
	Signature           *string
	SourcePayload       *string
	Status              *string
	OracleAcceptToRelay *bool
}

func (u OrderUpdate) columns() map[string]any {
	cols := map[string]any{}
	if u.To != nil {
		cols["to_address"] = *u.To
	}
	if u.RelayerFee != nil {
		cols["relayer_fee"] = *u.RelayerFee
	}
	if u.Signature != nil {
		cols["signature"] = *u.Signature
	}
	if u.SourcePayload != nil {
		cols["source_payload"] = *u.SourcePayload
	}
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	if u.OracleAcceptToRelay != nil {
		cols["oracle_accept_to_relay"] = *u.OracleAcceptToRelay
	}
	return cols
}

// Repository provides database access for orders and their signatures.
type Repository struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewRepository creates a new orders repository.
func NewRepository(db *gorm.DB, logger zerolog.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.With().Str("component", "orders_repository").Logger(),
	}
}

// FindBySourceNonce returns the live order for nonce, or nil if there is none.
func (r *Repository) FindBySourceNonce(sourceNonce string) (*store.Order, error) {
	return r.findOne(r.db, "source_nonce = ?", strings.ToLower(sourceNonce))
}

// FindByID returns the order with id, or nil if there is none.
func (r *Repository) FindByID(id string) (*store.Order, error) {
	return r.findOne(r.db, "id = ?", id)
}

func (r *Repository) findOne(tx *gorm.DB, query string, arg any) (*store.Order, error) {
	var order store.Order
	err := tx.Where(query, arg).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query order")
	}
	return &order, nil
}

// Create inserts a new order. An empty ID is derived from the source nonce and
// the number of deleted orders that held it, so a nonce re-ingested after a
// deletion gets a fresh id. An empty status defaults to pending. A live order
// with the same nonce yields ErrDuplicateOrder.
func (r *Repository) Create(order *store.Order) error {
	if err := validateOrder(order); err != nil {
		return err
	}
	order.SourceNonce = strings.ToLower(order.SourceNonce)
	if order.Status == "" {
		order.Status = store.StatusPending
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if order.ID == "" {
			var deleted int64
			if err := tx.Unscoped().Model(&store.Order{}).
				Where("source_nonce = ? AND deleted_at IS NOT NULL", order.SourceNonce).
				Count(&deleted).Error; err != nil {
				return errors.Wrap(err, "failed to count deleted orders")
			}
			order.ID = orderIDForGeneration(order.SourceNonce, deleted)
		}
		return tx.Create(order).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOrder
		}
		return errors.Wrapf(err, "failed to create order %s", order.ID)
	}

	r.logger.Info().
		Str("order_id", order.ID).
		Str("source_nonce", order.SourceNonce).
		Str("source", order.Source).
		Str("dest", order.Dest).
		Msg("stored new order")
	return nil
}

func validateOrder(order *store.Order) error {
	switch {
	case order == nil:
		return errors.Wrap(ErrInvalidOrder, "nil order")
	case !store.IsChain(order.Source) || !store.IsChain(order.Dest):
		return errors.Wrapf(ErrInvalidOrder, "unknown chain %q -> %q", order.Source, order.Dest)
	case order.Source == order.Dest:
		return errors.Wrap(ErrInvalidOrder, "source and dest must differ")
	case len(order.SourceNonce) != 64:
		return errors.Wrap(ErrInvalidOrder, "source nonce must be 64 hex characters")
	case order.Amount == "" || order.RelayerFee == "":
		return errors.Wrap(ErrInvalidOrder, "amount and relayer fee are required")
	}
	return nil
}

// Update applies the non-nil fields of upd. It returns nil when id does not exist.
func (r *Repository) Update(id string, upd OrderUpdate) (*store.Order, error) {
	var updated *store.Order
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var err error
		updated, err = r.updateTx(tx, id, upd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Repository) updateTx(tx *gorm.DB, id string, upd OrderUpdate) (*store.Order, error) {
	order, err := r.findOne(tx, "id = ?", id)
	if err != nil || order == nil {
		return nil, err
	}

	cols := upd.columns()
	if len(cols) == 0 {
		return order, nil
	}
	if err := tx.Model(&store.Order{}).Where("id = ?", id).Updates(cols).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to update order %s", id)
	}
	return r.findOne(tx, "id = ?", id)
}

// ApplyOverride updates the order and resets its quorum in one transaction:
// status back to pending, relay flag cleared, collected signatures superseded.
// Those signatures cover the old destination and fee and no longer verify.
func (r *Repository) ApplyOverride(id string, upd OrderUpdate) (*store.Order, error) {
	var updated *store.Order
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var err error
		if updated, err = r.updateTx(tx, id, upd); err != nil || updated == nil {
			return err
		}
		if err = supersedeSignaturesTx(tx, id); err != nil {
			return err
		}
		updated, err = r.findOne(tx, "id = ?", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func supersedeSignaturesTx(tx *gorm.DB, id string) error {
	result := tx.Model(&store.Order{}).Where("id = ?", id).Updates(map[string]any{
		"status":                 store.StatusPending,
		"oracle_accept_to_relay": false,
	})
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to reset quorum for order %s", id)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(ErrOrderNotFound, "order %s", id)
	}
	err := tx.Model(&store.OrderSignature{}).
		Where("order_id = ? AND superseded = ?", id, false).
		Update("superseded", true).Error
	if err != nil {
		return errors.Wrapf(err, "failed to supersede signatures for order %s", id)
	}
	return nil
}

// AddSignatures stores the signatures not yet recorded for the order and
// returns that inserted subset. Repeated and overlapping calls are safe. A
// signature superseded by an override is never recorded again.
func (r *Repository) AddSignatures(orderID string, signatures []string) ([]string, error) {
	inserted := []string{}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		order, err := r.findOne(tx, "id = ?", orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return errors.Wrapf(ErrOrderNotFound, "order %s", orderID)
		}

		seen := make(map[string]struct{}, len(signatures))
		for _, sig := range signatures {
			if sig == "" {
				continue
			}
			if _, dup := seen[sig]; dup {
				continue
			}
			seen[sig] = struct{}{}

			row := store.OrderSignature{OrderID: orderID, Signature: sig}
			result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if result.Error != nil {
				return errors.Wrapf(result.Error, "failed to insert signature for order %s", orderID)
			}
			if result.RowsAffected == 1 {
				inserted = append(inserted, sig)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// CountSignatures returns the number of distinct current signatures for the order.
func (r *Repository) CountSignatures(orderID string) (int64, error) {
	var count int64
	err := r.db.Model(&store.OrderSignature{}).
		Where("order_id = ? AND superseded = ?", orderID, false).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count signatures for order %s", orderID)
	}
	return count, nil
}

// SignaturesFor returns the current signatures keyed by order id.
func (r *Repository) SignaturesFor(orderIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	var rows []store.OrderSignature
	err := r.db.
		Where("order_id IN ? AND superseded = ?", orderIDs, false).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query signatures")
	}
	for _, row := range rows {
		out[row.OrderID] = append(out[row.OrderID], row.Signature)
	}
	return out, nil
}

// MarkReadyForRelay sets the relay flag and, for pending orders, the
// ready-for-relay status. Calling it on an already ready order returns the
// order unchanged.
func (r *Repository) MarkReadyForRelay(orderID string) (*store.Order, error) {
	var order *store.Order
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = r.findOne(tx, "id = ?", orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return errors.Wrapf(ErrOrderNotFound, "order %s", orderID)
		}
		if order.OracleAcceptToRelay {
			return nil
		}

		cols := map[string]any{"oracle_accept_to_relay": true}
		if order.Status == store.StatusPending {
			cols["status"] = store.StatusReadyForRelay
		}
		if err := tx.Model(&store.Order{}).Where("id = ?", orderID).Updates(cols).Error; err != nil {
			return errors.Wrapf(err, "failed to mark order %s ready for relay", orderID)
		}
		order, err = r.findOne(tx, "id = ?", orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// MarkFinalizedByNonce marks the order owning sourceNonce as finalized.
// It returns nil when no such order exists.
func (r *Repository) MarkFinalizedByNonce(sourceNonce string) (*store.Order, error) {
	order, err := r.FindBySourceNonce(sourceNonce)
	if err != nil || order == nil {
		return nil, err
	}
	if order.Status == store.StatusFinalized {
		return order, nil
	}
	status := store.StatusFinalized
	return r.Update(order.ID, OrderUpdate{Status: &status})
}

// FindRelayableOrders returns up to MaxListSize orders that reached quorum.
func (r *Repository) FindRelayableOrders() ([]store.Order, error) {
	var orders []store.Order
	err := r.db.
		Where("status = ? AND oracle_accept_to_relay = ?", store.StatusReadyForRelay, true).
		Order("created_at ASC, id ASC").
		Limit(MaxListSize).
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query relayable orders")
	}
	return orders, nil
}

// FindPendingOrders returns up to MaxListSize orders still collecting signatures.
func (r *Repository) FindPendingOrders() ([]store.Order, error) {
	var orders []store.Order
	err := r.db.
		Where("status = ?", store.StatusPending).
		Order("created_at ASC, id ASC").
		Limit(MaxListSize).
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query pending orders")
	}
	return orders, nil
}

// ByIDs returns the orders for the de-duplicated ids ordered by id ascending.
func (r *Repository) ByIDs(ids []string) ([]store.Order, error) {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) > MaxListSize {
		return nil, ErrTooManyIDs
	}
	if len(unique) == 0 {
		return []store.Order{}, nil
	}

	var orders []store.Order
	if err := r.db.Where("id IN ?", unique).Order("id ASC").Find(&orders).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query orders by id")
	}
	return orders, nil
}

// Ping checks the storage is reachable.
func (r *Repository) Ping() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to retrieve native sql.DB")
	}
	return errors.Wrap(sqlDB.Ping(), "storage ping failed")
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
