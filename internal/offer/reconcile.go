// AngelaMos | 2026
// reconcile.go

package offer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/media-rental/internal/core"
	"github.com/carterperez-dev/templates/media-rental/internal/metrics"
	"github.com/carterperez-dev/templates/media-rental/internal/user"
)

// repairGrace skips records young enough to belong to a mutation that is
// still between its two writes.
const repairGrace = time.Minute

// RepairOrphans walks both sides and brings them back into step:
//   - a seller copy with no mirror gets one, or is dropped when the
//     customer account no longer exists
//   - a customer copy with no seller copy is dropped
//   - a mirror whose permission drifted takes the seller's value
//
// Individual repair failures are collected and do not stop the pass.
func (s *Service) RepairOrphans(ctx context.Context) (RepairReport, error) {
	var report RepairReport

	sellers, err := s.repo.ListBySide(ctx, SideSeller)
	if err != nil {
		return report, fmt.Errorf("repair orphans: %w", err)
	}
	customers, err := s.repo.ListBySide(ctx, SideCustomer)
	if err != nil {
		return report, fmt.Errorf("repair orphans: %w", err)
	}

	cutoff := s.now().Add(-repairGrace)

	mirrors := make(map[MirrorKey][]*OfferRecord, len(customers))
	for i := range customers {
		c := &customers[i]
		mirrors[c.Key()] = append(mirrors[c.Key()], c)
	}

	var errs []error
	for i := range sellers {
		rec := &sellers[i]
		if rec.CreatedAt.After(cutoff) {
			continue
		}
		key := rec.Key()

		if list := mirrors[key]; len(list) > 0 {
			mirror := list[0]
			mirrors[key] = list[1:]
			if mirror.Permission != rec.Permission {
				if err := s.repo.UpdatePermission(ctx, mirror.ID, rec.Permission); err != nil {
					errs = append(errs, err)
					continue
				}
				report.PermissionsSynced++
				metrics.OrphansRepairedTotal.WithLabelValues("permission_synced").Inc()
			}
			continue
		}

		if err := s.restoreMirror(ctx, rec, &report); err != nil {
			errs = append(errs, err)
		}
	}

	for _, list := range mirrors {
		for _, orphan := range list {
			if orphan.CreatedAt.After(cutoff) {
				continue
			}
			if err := s.repo.DeleteByID(ctx, orphan.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
				errs = append(errs, err)
				continue
			}
			report.CustomerDropped++
			metrics.OrphansRepairedTotal.WithLabelValues("customer_dropped").Inc()
		}
	}

	if report.Total() > 0 || len(errs) > 0 {
		s.logger.InfoContext(ctx, "offer reconciliation pass",
			"mirrors_created", report.MirrorsCreated,
			"seller_dropped", report.SellerDropped,
			"customer_dropped", report.CustomerDropped,
			"permissions_synced", report.PermissionsSynced,
			"errors", len(errs),
		)
	}

	return report, errors.Join(errs...)
}

func (s *Service) restoreMirror(ctx context.Context, rec *OfferRecord, report *RepairReport) error {
	customer, err := s.accounts.FindAccount(ctx, rec.CustomerEmail, user.TypeCustomer)
	switch {
	case errors.Is(err, core.ErrNotFound):
		if err := s.repo.DeleteByID(ctx, rec.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
			return err
		}
		report.SellerDropped++
		metrics.OrphansRepairedTotal.WithLabelValues("seller_dropped").Inc()
		return nil
	case err != nil:
		return fmt.Errorf("restore mirror %s: %w", rec.ID, err)
	}

	if err := s.repo.Insert(ctx, rec.mirrorFor(uuid.New().String(), customer.ID, SideCustomer)); err != nil {
		return err
	}
	report.MirrorsCreated++
	metrics.OrphansRepairedTotal.WithLabelValues("mirror_created").Inc()
	return nil
}
