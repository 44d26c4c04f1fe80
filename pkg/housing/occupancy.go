package housing

import (
	"context"
	"fmt"
	"math"
)

// OccupancyReport summarizes the bed status cache.
type OccupancyReport struct {
	TotalBeds     int64
	OccupiedBeds  int64
	AvailableBeds int64
	OccupancyRate float64
}

// RevenueReport summarizes successful payments.
type RevenueReport struct {
	TotalBookings      int64
	TotalRevenue       AmountCents
	SuccessfulPayments int64
	AveragePayment     AmountCents
}

// HostelOccupancy is one row of the per-hostel breakdown.
type HostelOccupancy struct {
	HostelID       HostelID
	HostelName     string
	HostelType     string
	TotalRooms     int64
	RoomCapacity   int64
	ActiveBookings int64
	Occupancy      OccupancyReport
}

// Summary is the portal-wide administrative snapshot.
type Summary struct {
	TotalStudents     int64
	TotalHostels      int64
	TotalRooms        int64
	TotalBookings     int64
	PendingBookings   int64
	ActiveBookings    int64
	CompletedBookings int64
	CancelledBookings int64
	Occupancy         OccupancyReport
	Revenue           RevenueReport
}

// OccupancyAggregator derives reports from current state and never writes.
type OccupancyAggregator struct {
	store Store
}

// NewOccupancyAggregator wires an OccupancyAggregator.
func NewOccupancyAggregator(store Store) (*OccupancyAggregator, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	return &OccupancyAggregator{store: store}, nil
}

// Occupancy reports bed usage, optionally for a single hostel.
func (aggregator *OccupancyAggregator) Occupancy(ctx context.Context, hostelID *HostelID) (OccupancyReport, error) {
	counts, err := aggregator.store.CountBeds(ctx, hostelID)
	if err != nil {
		return OccupancyReport{}, err
	}
	return newOccupancyReport(counts), nil
}

// Revenue reports successful payment totals, optionally for a single hostel.
func (aggregator *OccupancyAggregator) Revenue(ctx context.Context, hostelID *HostelID) (RevenueReport, error) {
	totals, err := aggregator.store.SumRevenue(ctx, hostelID)
	if err != nil {
		return RevenueReport{}, err
	}
	return newRevenueReport(totals), nil
}

// Summary reports portal-wide counters from a single unit of work.
func (aggregator *OccupancyAggregator) Summary(ctx context.Context) (Summary, error) {
	var counts SummaryCounts
	err := aggregator.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		loaded, err := transactionStore.CountSummary(ctx)
		if err != nil {
			return err
		}
		counts = loaded
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		TotalStudents:     counts.Students,
		TotalHostels:      counts.Hostels,
		TotalRooms:        counts.Rooms,
		TotalBookings:     counts.PendingBookings + counts.ActiveBookings + counts.CompletedBookings + counts.CancelledBookings,
		PendingBookings:   counts.PendingBookings,
		ActiveBookings:    counts.ActiveBookings,
		CompletedBookings: counts.CompletedBookings,
		CancelledBookings: counts.CancelledBookings,
		Occupancy:         newOccupancyReport(counts.Beds),
		Revenue:           newRevenueReport(counts.Revenue),
	}, nil
}

// OccupancyByHostel reports occupancy for every hostel ordered by name.
func (aggregator *OccupancyAggregator) OccupancyByHostel(ctx context.Context) ([]HostelOccupancy, error) {
	rows, err := aggregator.store.ListHostelCounts(ctx)
	if err != nil {
		return nil, err
	}
	report := make([]HostelOccupancy, 0, len(rows))
	for _, row := range rows {
		report = append(report, HostelOccupancy{
			HostelID:       row.HostelID,
			HostelName:     row.HostelName,
			HostelType:     row.HostelType,
			TotalRooms:     row.Rooms,
			RoomCapacity:   row.Capacity,
			ActiveBookings: row.ActiveBookings,
			Occupancy:      newOccupancyReport(row.Beds),
		})
	}
	return report, nil
}

func newOccupancyReport(counts BedCounts) OccupancyReport {
	return OccupancyReport{
		TotalBeds:     counts.Total,
		OccupiedBeds:  counts.Occupied,
		AvailableBeds: counts.Total - counts.Occupied,
		OccupancyRate: occupancyRate(counts.Occupied, counts.Total),
	}
}

func newRevenueReport(totals RevenueTotals) RevenueReport {
	report := RevenueReport{
		TotalBookings:      totals.Bookings,
		TotalRevenue:       totals.Revenue,
		SuccessfulPayments: totals.Payments,
	}
	if totals.Payments > 0 {
		report.AveragePayment = AmountCents(math.Round(float64(totals.Revenue) / float64(totals.Payments)))
	}
	return report
}

// occupancyRate is occupied/total as a percentage rounded to two decimals.
func occupancyRate(occupied int64, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(occupied)/float64(total)*percentScale*percentScale) / percentScale
}
