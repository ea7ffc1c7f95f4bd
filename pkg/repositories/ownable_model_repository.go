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

const ownableModelsTable = "ownable_models"

var ownableModelStruct = database.NewStruct(new(models.OwnableModel))

// OwnableModelRepository handles database operations for ownable model descriptors
type OwnableModelRepository struct {
	*Repository
}

// NewOwnableModelRepository creates a new ownable model repository
func NewOwnableModelRepository(db database.DB, logger ectologger.Logger) *OwnableModelRepository {
	return &OwnableModelRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create inserts a new descriptor. Duplicate model_class or name is a
// validation failure, not an operational one.
func (r *OwnableModelRepository) Create(ctx context.Context, descriptor *models.OwnableModel) error {
	ctx, span := tracing.StartSpan(ctx, "OwnableModelRepository.Create")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(ownableModelsTable).
		Cols("model_class", "name", "description", "response_fields", "is_active", "created_at", "updated_at").
		Values(descriptor.ModelClass, descriptor.Name, descriptor.Description, descriptor.ResponseFields,
			descriptor.IsActive, sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("id", "created_at", "updated_at")

	query, args := ib.Build()
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&descriptor.ID, &descriptor.CreatedAt, &descriptor.UpdatedAt)
	if isUniqueViolation(err) {
		return httperror.NewHTTPError(http.StatusUnprocessableEntity, "model_class and name must be unique")
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"model_class": descriptor.ModelClass,
		}).Error("failed to create ownable model")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create ownable model")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"ownable_model_id": descriptor.ID,
		"model_class":      descriptor.ModelClass,
	}).Debugf("Created %s", ownableModelsTable)
	return nil
}

// GetByID retrieves a descriptor by id, nil when missing.
func (r *OwnableModelRepository) GetByID(ctx context.Context, id int64) (*models.OwnableModel, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnableModelRepository.GetByID")
	defer span.End()

	sb := ownableModelStruct.SelectFrom(ownableModelsTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var descriptor models.OwnableModel
	err := r.db.GetContext(ctx, &descriptor, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"ownable_model_id": id,
		}).Error("failed to get ownable model")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get ownable model")
	}

	return &descriptor, nil
}

// GetByModelClass retrieves a descriptor by its type identifier, nil when missing.
func (r *OwnableModelRepository) GetByModelClass(ctx context.Context, modelClass string) (*models.OwnableModel, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnableModelRepository.GetByModelClass")
	defer span.End()

	sb := ownableModelStruct.SelectFrom(ownableModelsTable)
	sb.Where(sb.Equal("model_class", modelClass))

	query, args := sb.Build()
	var descriptor models.OwnableModel
	err := r.db.GetContext(ctx, &descriptor, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"model_class": modelClass,
		}).Error("failed to get ownable model by model_class")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get ownable model")
	}

	return &descriptor, nil
}

// List returns a page of descriptors with the unpaginated total.
func (r *OwnableModelRepository) List(ctx context.Context, filters models.OwnableModelFilters, page, pageSize int) ([]models.OwnableModel, int, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnableModelRepository.List")
	defer span.End()

	countBuilder := database.NewSelectBuilder()
	countBuilder.Select("COUNT(*)").From(ownableModelsTable)
	if filters.IsActive != nil {
		countBuilder.Where(countBuilder.Equal("is_active", *filters.IsActive))
	}

	query, args := countBuilder.Build()
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count ownable models")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list ownable models")
	}

	sb := ownableModelStruct.SelectFrom(ownableModelsTable)
	if filters.IsActive != nil {
		sb.Where(sb.Equal("is_active", *filters.IsActive))
	}
	sb.OrderBy("id").Asc()
	sb.Limit(pageSize).Offset((page - 1) * pageSize)

	query, args = sb.Build()
	descriptors := []models.OwnableModel{}
	if err := r.db.SelectContext(ctx, &descriptors, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list ownable models")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list ownable models")
	}

	return descriptors, total, nil
}

// ListActive returns every active descriptor in insertion order.
func (r *OwnableModelRepository) ListActive(ctx context.Context) ([]models.OwnableModel, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnableModelRepository.ListActive")
	defer span.End()

	sb := ownableModelStruct.SelectFrom(ownableModelsTable)
	sb.Where(sb.Equal("is_active", true))
	sb.OrderBy("id").Asc()

	query, args := sb.Build()
	descriptors := []models.OwnableModel{}
	if err := r.db.SelectContext(ctx, &descriptors, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list active ownable models")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list ownable models")
	}

	return descriptors, nil
}

// Update rewrites the descriptor identified by its id.
func (r *OwnableModelRepository) Update(ctx context.Context, descriptor *models.OwnableModel) error {
	ctx, span := tracing.StartSpan(ctx, "OwnableModelRepository.Update")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(ownableModelsTable).
		Set(
			ub.Assign("model_class", descriptor.ModelClass),
			ub.Assign("name", descriptor.Name),
			ub.Assign("description", descriptor.Description),
			ub.Assign("response_fields", descriptor.ResponseFields),
			ub.Assign("is_active", descriptor.IsActive),
			"updated_at = NOW()",
		).
		Where(ub.Equal("id", descriptor.ID))

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return httperror.NewHTTPError(http.StatusUnprocessableEntity, "model_class and name must be unique")
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"ownable_model_id": descriptor.ID,
		}).Error("failed to update ownable model")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update ownable model")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update ownable model")
	}
	if affected == 0 {
		return NotFound("ownable model %d does not exist", descriptor.ID)
	}

	return nil
}

// Delete removes the descriptor row and reports whether one was deleted.
// Ownership history referencing the type identifier is untouched.
func (r *OwnableModelRepository) Delete(ctx context.Context, id int64) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "OwnableModelRepository.Delete")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(ownableModelsTable).Where(db.Equal("id", id))

	query, args := db.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"ownable_model_id": id,
		}).Error("failed to delete ownable model")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete ownable model")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete ownable model")
	}

	return affected > 0, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
