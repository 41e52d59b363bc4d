package dispatch

import (
	"context"

	"github.com/example/last-mile-dispatch/internal/models"
)

// Offer is the push payload a driver app receives for one wave.
type Offer struct {
	Type        string       `json:"type"`
	JobID       string       `json:"job_id"`
	NumOrders   int          `json:"num_orders"`
	PickupCoord models.Coord `json:"pickup_coord"`
}

func offerFor(job models.Job) Offer {
	o := Offer{Type: "NEW_JOB_OFFER", JobID: job.ID, NumOrders: len(job.OrderIDs)}
	if len(job.Stops) > 0 {
		o.PickupCoord = job.Stops[0].Coord
	}
	return o
}

// PushService broadcasts a job offer to a wave of drivers. The transport is
// opaque to the dispatcher; failures are best-effort (a missed push costs one
// driver one wave, the next wave still goes out).
type PushService interface {
	BroadcastOffer(ctx context.Context, driverIDs []string, job models.Job) error
}

// FanoutPush tries the live WebSocket session first and falls back to FCM
// for drivers without one.
type FanoutPush struct {
	WS  *WSRegistry
	FCM *FCMPush
}

func (p *FanoutPush) BroadcastOffer(ctx context.Context, driverIDs []string, job models.Job) error {
	offer := offerFor(job)
	for _, id := range driverIDs {
		if p.WS != nil && p.WS.Send(id, offer) == nil {
			continue
		}
		if p.FCM != nil {
			_ = p.FCM.Send(ctx, id, offer)
		}
	}
	return nil
}
