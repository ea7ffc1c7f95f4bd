package services

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/sowailem/ownable/pkg/appcontext"
	"github.com/sowailem/ownable/pkg/entities"
	"github.com/sowailem/ownable/pkg/events"
	"github.com/sowailem/ownable/pkg/metrics"
	"github.com/sowailem/ownable/pkg/models"
	"github.com/sowailem/ownable/pkg/repositories"
	"github.com/sowailem/ownable/pkg/tracing"
)

// EventPublisher publishes ownership lifecycle events. Satisfied by
// events.Producer; nil disables publishing.
type EventPublisher interface {
	Publish(ctx context.Context, evt *events.OwnershipEvent) error
}

// TransferInput carries a transfer request. The from fields declare caller
// intent; the ledger does not verify them against the actual current owner,
// they are recorded on the published event for audit.
type TransferInput struct {
	FromOwnerID   int64
	FromOwnerType string
	ToOwnerID     int64
	ToOwnerType   string
	OwnableID     int64
	OwnableType   string
}

// OwnershipService implements the ledger verbs on top of the ledger store.
type OwnershipService struct {
	logger   ectologger.Logger
	repo     repositories.OwnershipRepo
	resolver *entities.Resolver
	producer EventPublisher
}

// NewOwnershipService creates a new ownership service
func NewOwnershipService(logger ectologger.Logger, repo repositories.OwnershipRepo, resolver *entities.Resolver, producer EventPublisher) *OwnershipService {
	return &OwnershipService{
		logger:   logger,
		repo:     repo,
		resolver: resolver,
		producer: producer,
	}
}

// Give makes the owner the current owner of the ownable pair. A new history
// row is created even when the owner already holds the entity.
func (s *OwnershipService) Give(ctx context.Context, ownerID int64, ownerType string, ownableID int64, ownableType string) (*models.Ownership, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnershipService.Give")
	defer span.End()
	defer observe("give", time.Now())

	if err := validatePair(ownerID, ownerType, "owner"); err != nil {
		return nil, err
	}
	if err := validatePair(ownableID, ownableType, "ownable"); err != nil {
		return nil, err
	}

	ownership, err := s.repo.Give(ctx, ownerID, ownerType, ownableID, ownableType)
	if err != nil {
		metrics.OwnershipOperationsTotal.WithLabelValues("give", "error").Inc()
		return nil, err
	}
	metrics.OwnershipOperationsTotal.WithLabelValues("give", "success").Inc()

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"ownership_id": ownership.ID,
		"owner_id":     ownerID,
		"owner_type":   ownerType,
		"ownable_id":   ownableID,
		"ownable_type": ownableType,
	}).Info("ownership given")

	s.publish(ctx, &events.OwnershipEvent{
		Type:        events.TypeOwnershipGiven,
		OwnershipID: ownership.ID,
		OwnerID:     ownerID,
		OwnerType:   ownerType,
		OwnableID:   ownableID,
		OwnableType: ownableType,
	})

	return ownership, nil
}

// Transfer gives the ownable pair to the new owner. Equivalent to Give; the
// declared from-owner is not checked against the ledger.
func (s *OwnershipService) Transfer(ctx context.Context, input TransferInput) (*models.Ownership, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnershipService.Transfer")
	defer span.End()
	defer observe("transfer", time.Now())

	if err := validatePair(input.FromOwnerID, input.FromOwnerType, "from_owner"); err != nil {
		return nil, err
	}
	if err := validatePair(input.ToOwnerID, input.ToOwnerType, "to_owner"); err != nil {
		return nil, err
	}
	if err := validatePair(input.OwnableID, input.OwnableType, "ownable"); err != nil {
		return nil, err
	}

	ownership, err := s.repo.Give(ctx, input.ToOwnerID, input.ToOwnerType, input.OwnableID, input.OwnableType)
	if err != nil {
		metrics.OwnershipOperationsTotal.WithLabelValues("transfer", "error").Inc()
		return nil, err
	}
	metrics.OwnershipOperationsTotal.WithLabelValues("transfer", "success").Inc()

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"ownership_id":    ownership.ID,
		"from_owner_id":   input.FromOwnerID,
		"from_owner_type": input.FromOwnerType,
		"to_owner_id":     input.ToOwnerID,
		"to_owner_type":   input.ToOwnerType,
		"ownable_id":      input.OwnableID,
		"ownable_type":    input.OwnableType,
	}).Info("ownership transferred")

	s.publish(ctx, &events.OwnershipEvent{
		Type:          events.TypeOwnershipTransferred,
		OwnershipID:   ownership.ID,
		OwnerID:       input.ToOwnerID,
		OwnerType:     input.ToOwnerType,
		FromOwnerID:   input.FromOwnerID,
		FromOwnerType: input.FromOwnerType,
		OwnableID:     input.OwnableID,
		OwnableType:   input.OwnableType,
	})

	return ownership, nil
}

// Check reports whether the owner currently owns the ownable pair.
func (s *OwnershipService) Check(ctx context.Context, ownerID int64, ownerType string, ownableID int64, ownableType string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnershipService.Check")
	defer span.End()
	defer observe("check", time.Now())

	if err := validatePair(ownerID, ownerType, "owner"); err != nil {
		return false, err
	}
	if err := validatePair(ownableID, ownableType, "ownable"); err != nil {
		return false, err
	}

	owns, err := s.repo.Check(ctx, ownerID, ownerType, ownableID, ownableType)
	if err != nil {
		metrics.OwnershipOperationsTotal.WithLabelValues("check", "error").Inc()
		return false, err
	}
	metrics.OwnershipOperationsTotal.WithLabelValues("check", "success").Inc()
	return owns, nil
}

// Current returns the current ledger row for the ownable pair with the
// owner entity resolved, or nil when there is no current owner. A zero
// ownable id resolves to nil rather than an error.
func (s *OwnershipService) Current(ctx context.Context, ownableType string, ownableID int64) (*models.Ownership, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnershipService.Current")
	defer span.End()
	defer observe("current", time.Now())

	if ownableID == 0 {
		return nil, nil
	}
	if ownableType == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "ownable_type is required")
	}

	ownership, err := s.repo.Current(ctx, ownableType, ownableID)
	if err != nil || ownership == nil {
		return nil, err
	}

	owner, err := s.resolver.Resolve(ctx, entities.Ref{ID: ownership.OwnerID, Type: ownership.OwnerType})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"owner_id":   ownership.OwnerID,
			"owner_type": ownership.OwnerType,
		}).Warn("failed to resolve owner entity")
	} else {
		ownership.Owner = owner
	}

	return ownership, nil
}

// Remove flips the current row for the ownable pair to not-current and
// reports whether anything changed. History is retained.
func (s *OwnershipService) Remove(ctx context.Context, ownableID int64, ownableType string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnershipService.Remove")
	defer span.End()
	defer observe("remove", time.Now())

	if err := validatePair(ownableID, ownableType, "ownable"); err != nil {
		return false, err
	}

	removed, err := s.repo.Remove(ctx, ownableID, ownableType)
	if err != nil {
		metrics.OwnershipOperationsTotal.WithLabelValues("remove", "error").Inc()
		return false, err
	}
	metrics.OwnershipOperationsTotal.WithLabelValues("remove", "success").Inc()

	if removed {
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"ownable_id":   ownableID,
			"ownable_type": ownableType,
		}).Info("ownership removed")

		s.publish(ctx, &events.OwnershipEvent{
			Type:        events.TypeOwnershipRemoved,
			OwnableID:   ownableID,
			OwnableType: ownableType,
		})
	}

	return removed, nil
}

// List returns a page of ledger rows matching the filters, with owner and
// ownable entities resolved where a source is registered.
func (s *OwnershipService) List(ctx context.Context, filters models.OwnershipFilters, page, pageSize int) (*models.OwnershipListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnershipService.List")
	defer span.End()
	defer observe("list", time.Now())

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	ownerships, total, err := s.repo.List(ctx, filters, page, pageSize)
	if err != nil {
		return nil, err
	}

	for i := range ownerships {
		o := &ownerships[i]
		if owner, err := s.resolver.Resolve(ctx, entities.Ref{ID: o.OwnerID, Type: o.OwnerType}); err == nil {
			o.Owner = owner
		}
		if ownable, err := s.resolver.Resolve(ctx, entities.Ref{ID: o.OwnableID, Type: o.OwnableType}); err == nil {
			o.Ownable = ownable
		}
	}

	return &models.OwnershipListResponse{
		Items:      ownerships,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// OwnedItems returns everything the owner currently owns, resolved through
// the entity lookup table. Items whose type has no registered source keep a
// minimal representation of their reference.
func (s *OwnershipService) OwnedItems(ctx context.Context, ownerID int64, ownerType string) ([]entities.OwnedItem, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnershipService.OwnedItems")
	defer span.End()

	if err := validatePair(ownerID, ownerType, "owner"); err != nil {
		return nil, err
	}

	rows, err := s.repo.ListCurrentByOwner(ctx, ownerID, ownerType)
	if err != nil {
		return nil, err
	}

	items := make([]entities.OwnedItem, 0, len(rows))
	for _, row := range rows {
		ownable, err := s.resolver.Resolve(ctx, entities.Ref{ID: row.OwnableID, Type: row.OwnableType})
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"ownable_id":   row.OwnableID,
				"ownable_type": row.OwnableType,
			}).Warn("failed to resolve owned entity")
			continue
		}
		if ownable == nil {
			ownable = map[string]any{"id": row.OwnableID}
		}
		items = append(items, entities.OwnedItem{
			OwnableType: row.OwnableType,
			Ownable:     ownable,
		})
	}

	return items, nil
}

func (s *OwnershipService) publish(ctx context.Context, evt *events.OwnershipEvent) {
	if s.producer == nil {
		return
	}

	evt.ActorID = appcontext.GetActorID(ctx)
	if err := s.producer.Publish(ctx, evt); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(evt.Type, "error").Inc()
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(evt.Type, "success").Inc()
}

func validatePair(id int64, typeIdentifier string, field string) error {
	if id == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, field+"_id is required")
	}
	if typeIdentifier == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, field+"_type is required")
	}
	return nil
}

func observe(verb string, start time.Time) {
	metrics.OwnershipOperationDuration.WithLabelValues(verb).Observe(time.Since(start).Seconds())
}
