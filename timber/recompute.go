/*
recompute.go - Repair entry point

PURPOSE:
  RecomputeAll re-derives every client projection and every shipment
  rollup from first principles (lots, sales, journal entries). It exists
  for external maintenance jobs to run after detected drift: because
  projections and rollups are pure folds over current state, one pass
  restores consistency no matter how the drift arose.
*/
package timber

import (
	"context"
	"time"
)

// RepairSummary reports what a RecomputeAll pass touched.
type RepairSummary struct {
	Clients   int
	Shipments int
	StartedAt time.Time
	Took      time.Duration
}

// Repair runs full recomputation passes.
type Repair struct {
	db     DB
	inv    Invalidator
	policy PricingPolicy
	now    func() time.Time
}

// NewRepair creates the repair runner.
func NewRepair(db DB, policy PricingPolicy, inv Invalidator) *Repair {
	if inv == nil {
		inv = NopInvalidator{}
	}
	return &Repair{db: db, inv: inv, policy: policy, now: func() time.Time { return time.Now().UTC() }}
}

// RecomputeAll refreshes every client projection and shipment rollup.
// Each entity is recomputed in its own atomic unit so a single bad row
// cannot wedge the whole pass, and concurrent business operations only
// ever contend on one entity at a time.
func (r *Repair) RecomputeAll(ctx context.Context) (RepairSummary, error) {
	started := r.now()
	sum := RepairSummary{StartedAt: started}

	clients, err := r.db.Clients(ctx)
	if err != nil {
		return sum, err
	}
	for _, c := range clients {
		if c.Deleted {
			continue
		}
		id := c.ID
		err := r.db.Atomic(ctx, func(s Store) error {
			_, err := RecomputeClient(ctx, s, id, r.now())
			return err
		})
		if err != nil {
			return sum, err
		}
		r.inv.Invalidate(KindClient, id)
		sum.Clients++
	}

	shipments, err := r.db.Shipments(ctx)
	if err != nil {
		return sum, err
	}
	for _, sh := range shipments {
		if sh.Deleted {
			continue
		}
		id := sh.ID
		err := r.db.Atomic(ctx, func(s Store) error {
			_, err := RecomputeShipment(ctx, s, id, r.policy, r.now())
			return err
		})
		if err != nil {
			return sum, err
		}
		r.inv.Invalidate(KindShipment, id)
		sum.Shipments++
	}

	sum.Took = r.now().Sub(started)
	return sum, nil
}
