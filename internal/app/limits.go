package app

import (
	"context"
	"time"

	"github.com/sbkbank/transfer-service/internal/domain"
)

// startOfDayUTC returns midnight UTC of t's calendar day. The daily limit
// window is [midnight UTC, now); transfers recorded on a prior UTC day never
// count toward today's total.
func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// OutgoingTotalToday sums the amounts of every ledger row whose source is
// accountNumber and whose timestamp falls in today's UTC window. During a
// transfer it is evaluated under the sender's account lock, inside the same
// atomicity boundary as the balance mutation.
func (s *Service) OutgoingTotalToday(ctx context.Context, accountNumber string) (int64, error) {
	now := time.Now().UTC()
	rows, err := s.ledger.QueryByAccountAndWindow(ctx, accountNumber, domain.DirectionOutgoing, startOfDayUTC(now), now)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, tx := range rows {
		total += tx.Amount
	}
	return total, nil
}
