package housing

import (
	"context"
	"fmt"
)

// AvailabilityQuery answers read-only questions about free beds.
type AvailabilityQuery struct {
	store Store
}

// NewAvailabilityQuery wires an AvailabilityQuery.
func NewAvailabilityQuery(store Store) (*AvailabilityQuery, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	return &AvailabilityQuery{store: store}, nil
}

// IsAvailable reports whether no pending or active booking on bedID overlaps period.
func (query *AvailabilityQuery) IsAvailable(ctx context.Context, bedID BedID, period DateRange) (bool, error) {
	if period.IsZero() {
		return false, fmt.Errorf("%w: missing dates", ErrInvalidDateRange)
	}
	if _, err := query.store.GetBed(ctx, bedID); err != nil {
		return false, err
	}
	holding, err := query.store.ListBedBookings(ctx, []BedID{bedID}, bedHoldingStatuses)
	if err != nil {
		return false, err
	}
	return !anyOverlap(holding, period), nil
}

// ListAvailableBeds returns beds matching filter that are free. With a period, a bed is
// free when nothing overlaps it; without one, when nothing holds it at all.
func (query *AvailabilityQuery) ListAvailableBeds(ctx context.Context, filter BedFilter) ([]BedListing, error) {
	if filter.Period != nil && filter.Period.IsZero() {
		return nil, fmt.Errorf("%w: missing dates", ErrInvalidDateRange)
	}
	var available []BedListing
	err := query.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		listings, err := transactionStore.ListBeds(ctx, filter)
		if err != nil {
			return err
		}
		if len(listings) == 0 {
			return nil
		}
		bedIDs := make([]BedID, 0, len(listings))
		for _, listing := range listings {
			bedIDs = append(bedIDs, listing.Bed.ID)
		}
		holding, err := transactionStore.ListBedBookings(ctx, bedIDs, bedHoldingStatuses)
		if err != nil {
			return err
		}
		byBed := make(map[BedID][]Booking, len(holding))
		for _, booking := range holding {
			byBed[booking.BedID] = append(byBed[booking.BedID], booking)
		}
		for _, listing := range listings {
			bookings := byBed[listing.Bed.ID]
			if filter.Period == nil {
				if len(bookings) > 0 {
					continue
				}
			} else if anyOverlap(bookings, *filter.Period) {
				continue
			}
			available = append(available, listing)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return available, nil
}

func anyOverlap(bookings []Booking, period DateRange) bool {
	for _, booking := range bookings {
		if booking.Period.Overlaps(period) {
			return true
		}
	}
	return false
}
