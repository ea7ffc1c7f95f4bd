package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/sowailem/ownable/pkg/database"
	"github.com/sowailem/ownable/pkg/models"
	"github.com/sowailem/ownable/pkg/tracing"
)

const ownershipsTable = "ownerships"

// giveMaxAttempts bounds retries of the flip-then-insert transaction when
// concurrent writers collide on the single-current unique index.
const giveMaxAttempts = 3

var ownershipStruct = database.NewStruct(new(models.Ownership))

// OwnershipRepository is the ledger store: an append-only history of
// ownership rows with at most one current row per ownable pair.
type OwnershipRepository struct {
	*Repository
}

// NewOwnershipRepository creates a new ownership ledger repository
func NewOwnershipRepository(db database.DB, logger ectologger.Logger) *OwnershipRepository {
	return &OwnershipRepository{
		Repository: NewRepository(db, logger),
	}
}

// Give supersedes the current ownership of the ownable pair. Within one
// transaction the current rows are flipped to not-current and a fresh
// current row is inserted. A concurrent writer surfaces as a unique or
// serialization failure and the sequence is retried a bounded number of
// times before giving up.
func (r *OwnershipRepository) Give(ctx context.Context, ownerID int64, ownerType string, ownableID int64, ownableType string) (*models.Ownership, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnershipRepository.Give")
	defer span.End()

	var ownership *models.Ownership
	var err error
	for attempt := 1; attempt <= giveMaxAttempts; attempt++ {
		ownership, err = r.give(ctx, ownerID, ownerType, ownableID, ownableType)
		if err == nil {
			return ownership, nil
		}
		if !isRetryable(err) {
			break
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"ownable_id":   ownableID,
			"ownable_type": ownableType,
			"attempt":      attempt,
		}).Warn("ownership supersede collided, retrying")
	}

	r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
		"ownable_id":   ownableID,
		"ownable_type": ownableType,
	}).Error("failed to give ownership")
	return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to give ownership")
}

func (r *OwnershipRepository) give(ctx context.Context, ownerID int64, ownerType string, ownableID int64, ownableType string) (*models.Ownership, error) {
	ctxTx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ub := database.NewUpdateBuilder()
	ub.Update(ownershipsTable).
		Set(
			ub.Assign("is_current", false),
			"updated_at = NOW()",
		).
		Where(
			ub.Equal("ownable_id", ownableID),
			ub.Equal("ownable_type", ownableType),
			ub.Equal("is_current", true),
		)

	query, args := ub.Build()
	if _, err := tx.ExecContext(ctxTx, query, args...); err != nil {
		return nil, err
	}

	ownership := &models.Ownership{
		OwnerID:     ownerID,
		OwnerType:   ownerType,
		OwnableID:   ownableID,
		OwnableType: ownableType,
		IsCurrent:   true,
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(ownershipsTable).
		Cols("owner_id", "owner_type", "ownable_id", "ownable_type", "is_current", "created_at", "updated_at").
		Values(ownerID, ownerType, ownableID, ownableType, true,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("id", "created_at", "updated_at")

	query, args = ib.Build()
	if err := tx.QueryRowContext(ctxTx, query, args...).Scan(&ownership.ID, &ownership.CreatedAt, &ownership.UpdatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"ownership_id": ownership.ID,
		"ownable_id":   ownableID,
		"ownable_type": ownableType,
	}).Debugf("Created %s", ownershipsTable)
	return ownership, nil
}

// isRetryable reports whether the error is a transient collision between
// concurrent supersedes: the partial unique index on current rows, a
// serialization failure, or a deadlock.
func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "23505", "40001", "40P01":
		return true
	}
	return false
}

// Check reports whether the owner currently owns the ownable pair.
func (r *OwnershipRepository) Check(ctx context.Context, ownerID int64, ownerType string, ownableID int64, ownableType string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnershipRepository.Check")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)").From(ownershipsTable).
		Where(
			sb.Equal("owner_id", ownerID),
			sb.Equal("owner_type", ownerType),
			sb.Equal("ownable_id", ownableID),
			sb.Equal("ownable_type", ownableType),
			sb.Equal("is_current", true),
		)

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to check ownership")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check ownership")
	}

	return count > 0, nil
}

// Current returns the single current ledger row for the ownable pair, or
// nil when the pair has no current owner.
func (r *OwnershipRepository) Current(ctx context.Context, ownableType string, ownableID int64) (*models.Ownership, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnershipRepository.Current")
	defer span.End()

	sb := ownershipStruct.SelectFrom(ownershipsTable)
	sb.Where(
		sb.Equal("ownable_type", ownableType),
		sb.Equal("ownable_id", ownableID),
		sb.Equal("is_current", true),
	)

	query, args := sb.Build()
	var ownership models.Ownership
	err := r.db.GetContext(ctx, &ownership, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"ownable_id":   ownableID,
			"ownable_type": ownableType,
		}).Error("failed to get current ownership")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get current ownership")
	}

	return &ownership, nil
}

// Remove flips the current row for the ownable pair to not-current and
// reports whether a row was affected. History rows are untouched.
func (r *OwnershipRepository) Remove(ctx context.Context, ownableID int64, ownableType string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnershipRepository.Remove")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(ownershipsTable).
		Set(
			ub.Assign("is_current", false),
			"updated_at = NOW()",
		).
		Where(
			ub.Equal("ownable_id", ownableID),
			ub.Equal("ownable_type", ownableType),
			ub.Equal("is_current", true),
		)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"ownable_id":   ownableID,
			"ownable_type": ownableType,
		}).Error("failed to remove ownership")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to remove ownership")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to remove ownership")
	}

	return affected > 0, nil
}

// List returns a page of ledger rows matching the filters, newest first,
// along with the unpaginated total.
func (r *OwnershipRepository) List(ctx context.Context, filters models.OwnershipFilters, page, pageSize int) ([]models.Ownership, int, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnershipRepository.List")
	defer span.End()

	countBuilder := database.NewSelectBuilder()
	countBuilder.Select("COUNT(*)").From(ownershipsTable)
	applyOwnershipFilters(countBuilder, filters)

	query, args := countBuilder.Build()
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count ownerships")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list ownerships")
	}

	sb := ownershipStruct.SelectFrom(ownershipsTable)
	applyOwnershipFilters(sb, filters)
	sb.OrderBy("id").Desc()
	sb.Limit(pageSize).Offset((page - 1) * pageSize)

	query, args = sb.Build()
	ownerships := []models.Ownership{}
	if err := r.db.SelectContext(ctx, &ownerships, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list ownerships")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list ownerships")
	}

	return ownerships, total, nil
}

// ListCurrentByOwner returns every current ledger row held by the owner,
// oldest first so grouped output keeps a stable encounter order.
func (r *OwnershipRepository) ListCurrentByOwner(ctx context.Context, ownerID int64, ownerType string) ([]models.Ownership, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnershipRepository.ListCurrentByOwner")
	defer span.End()

	sb := ownershipStruct.SelectFrom(ownershipsTable)
	sb.Where(
		sb.Equal("owner_id", ownerID),
		sb.Equal("owner_type", ownerType),
		sb.Equal("is_current", true),
	)
	sb.OrderBy("id").Asc()

	query, args := sb.Build()
	ownerships := []models.Ownership{}
	if err := r.db.SelectContext(ctx, &ownerships, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"owner_id":   ownerID,
			"owner_type": ownerType,
		}).Error("failed to list current ownerships by owner")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list ownerships")
	}

	return ownerships, nil
}

type whereBuilder interface {
	Where(andExpr ...string) *sqlbuilder.SelectBuilder
	Equal(field string, value any) string
}

func applyOwnershipFilters(sb whereBuilder, filters models.OwnershipFilters) {
	if filters.OwnerID != nil {
		sb.Where(sb.Equal("owner_id", *filters.OwnerID))
	}
	if filters.OwnerType != nil {
		sb.Where(sb.Equal("owner_type", *filters.OwnerType))
	}
	if filters.OwnableID != nil {
		sb.Where(sb.Equal("ownable_id", *filters.OwnableID))
	}
	if filters.OwnableType != nil {
		sb.Where(sb.Equal("ownable_type", *filters.OwnableType))
	}
	if filters.IsCurrent != nil {
		sb.Where(sb.Equal("is_current", *filters.IsCurrent))
	}
}
