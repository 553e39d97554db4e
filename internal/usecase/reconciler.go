package usecase

import (
	"context"

	"github.com/vitos/ladder_bot/internal/domain"
	"go.uber.org/zap"
)

// Reconciler rebuilds a persisted PositionState from live order status after
// a restart. When the picture is ambiguous it prefers resetting to Flat over
// resuming a ladder it cannot account for.
type Reconciler struct {
	trader domain.TradingTransport
	logger *zap.Logger
}

func NewReconciler(trader domain.TradingTransport, logger *zap.Logger) *Reconciler {
	return &Reconciler{trader: trader, logger: logger}
}

// Reconcile returns the corrected state. Query failures leave the affected
// order at its persisted status.
func (r *Reconciler) Reconcile(ctx context.Context, st domain.PositionState) domain.PositionState {
	log := r.logger.With(zap.String("symbol", st.Symbol), zap.String("persisted", st.Label()))

	switch st.Phase {
	case domain.PhaseFlat, "":
		next := st.Clone()
		next.Phase = domain.PhaseFlat
		return next

	case domain.PhaseEntryPending:
		if st.OpenOrderID == "" {
			log.Warn("Entry pending without an order id, resetting")
			return reset(st)
		}
		rep, err := r.trader.QueryOrderStatus(ctx, st.Symbol, st.OpenOrderID)
		if err != nil {
			log.Warn("Failed to query entry order, keeping persisted state", zap.Error(err))
			return st
		}
		switch rep.Status {
		case domain.OrderStatusFilled:
			log.Info("Entry filled while offline", zap.Float64("price", rep.AvgPrice))
			return entryFilled(st, rep.AvgPrice)
		case domain.OrderStatusAbsent:
			log.Warn("Entry order not found, resetting", zap.String("order_id", st.OpenOrderID))
			return reset(st)
		}
		return st

	case domain.PhaseOpenUnladdered, domain.PhaseOpen:
		if len(st.Legs) == 0 {
			log.Warn("Open position without exit legs, resetting")
			return reset(st)
		}
		next := st.Clone()
		for i, leg := range st.Legs {
			if leg.Status == domain.LegFilled {
				continue
			}
			rep, err := r.trader.QueryOrderStatus(ctx, st.Symbol, leg.OrderID)
			if err != nil {
				log.Warn("Failed to query exit leg", zap.String("order_id", leg.OrderID), zap.Error(err))
				continue
			}
			next.Legs[i].Status = reconcileLeg(leg.Status, rep.Status)
		}

		if next.FilledLegs() == len(next.Legs) {
			log.Info("No exit leg still working, treating position as closed")
			return reset(st)
		}
		log.Info("Reconciled position", zap.String("phase", next.Label()))
		return next
	}

	log.Warn("Unknown persisted phase, resetting")
	return reset(st)
}

// reconcileLeg maps a live order status onto a leg. A pending leg the
// exchange has never seen stays pending and is placed again. A leg that was
// accepted and is now gone is assumed to have executed.
func reconcileLeg(current domain.LegStatus, live domain.OrderStatus) domain.LegStatus {
	switch live {
	case domain.OrderStatusOpen:
		return domain.LegWorking
	case domain.OrderStatusFilled:
		return domain.LegFilled
	}
	if current == domain.LegPending {
		return domain.LegPending
	}
	return domain.LegFilled
}

func reset(st domain.PositionState) domain.PositionState {
	next := st.Clone()
	next.Reset()
	return next
}
