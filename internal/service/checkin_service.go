package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/campusops/devtrack/internal/apperr"
	"github.com/campusops/devtrack/internal/cache"
	"github.com/campusops/devtrack/internal/dto"
	"github.com/campusops/devtrack/internal/events"
	"github.com/campusops/devtrack/internal/models"
	"github.com/campusops/devtrack/internal/observability"
	"github.com/campusops/devtrack/internal/repository"
	"github.com/campusops/devtrack/pkg/tracker"
)

// TrackerAPI is the slice of the tracker client the sync engine needs.
type TrackerAPI interface {
	Get(ctx context.Context, assetID string) (tracker.AssetRecord, error)
	FindByTag(ctx context.Context, tag string) (tracker.AssetRecord, error)
	UpdateOwner(ctx context.Context, assetID string, ownerRef *string) error
	CreateAsset(ctx context.Context, tag string, fields map[string]string) (string, error)
}

// TagIssuer issues collision-free sequential asset tags.
type TagIssuer interface {
	Next(ctx context.Context, prefix string) (string, error)
}

// AssetCache is the read-through cache in front of tracker lookups.
type AssetCache interface {
	Get(ctx context.Context, assetID string) (tracker.AssetRecord, bool)
	Put(ctx context.Context, assetID string, record tracker.AssetRecord, ttl time.Duration)
}

// FieldNames maps this system's device attributes onto the tracker
// deployment's custom field names.
type FieldNames struct {
	Serial string
	Type   string
}

// CheckInService orchestrates the operations that must touch both the
// tracker and the local ledger without leaving partial state on either
// side: a failed remote call never marks a student checked in, and a
// cleared device is reported even when no student row matches.
type CheckInService interface {
	CheckIn(ctx context.Context, assetRef string, operator Operator, override bool) (dto.CheckInResult, error)
	AssignTag(ctx context.Context, req dto.AssignTagRequest, operator Operator) (dto.AssignTagResult, error)
}

type checkInService struct {
	tracker   TrackerAPI
	assets    AssetCache
	students  repository.StudentRepository
	tags      TagIssuer
	fields    FieldNames
	publisher *events.Publisher
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewCheckInService constructs the sync engine.
func NewCheckInService(
	trackerAPI TrackerAPI,
	assets AssetCache,
	students repository.StudentRepository,
	tags TagIssuer,
	fields FieldNames,
	publisher *events.Publisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) CheckInService {
	if publisher == nil {
		publisher = events.NewPublisher(nil, logger)
	}
	return &checkInService{
		tracker:   trackerAPI,
		assets:    assets,
		students:  students,
		tags:      tags,
		fields:    fields,
		publisher: publisher,
		validator: validate,
		logger:    logger.With().Str("component", "checkin_service").Logger(),
		now:       time.Now,
	}
}

func (s *checkInService) CheckIn(ctx context.Context, assetRef string, operator Operator, override bool) (dto.CheckInResult, error) {
	record, err := s.resolveAsset(ctx, assetRef)
	if err != nil {
		observability.CheckIns().WithLabelValues("error").Inc()
		return dto.CheckInResult{}, err
	}

	student, found, err := s.resolveStudent(ctx, record)
	if err != nil {
		observability.CheckIns().WithLabelValues("error").Inc()
		return dto.CheckInResult{}, err
	}

	// Re-check-in guard: a second scan of an already returned device is
	// declined until the operator explicitly overrides. Nothing mutates.
	if found && student.DeviceCheckedIn && !override {
		observability.CheckIns().WithLabelValues("confirmation_required").Inc()
		return dto.CheckInResult{}, apperr.Newf(apperr.KindConfirmationRequired,
			"%s already has a device checked in; re-submit with override to continue", student.Name)
	}

	// Remote first. If the tracker call fails the whole operation fails
	// and the ledger stays untouched.
	if err := s.tracker.UpdateOwner(ctx, record.AssetID, nil); err != nil {
		observability.CheckIns().WithLabelValues("error").Inc()
		return dto.CheckInResult{}, err
	}

	result := dto.CheckInResult{
		AssetID: record.AssetID,
		Tag:     record.Tag,
	}

	if !found {
		result.Warning = "device cleared in tracker; no matching student record"
		observability.CheckIns().WithLabelValues("no_student").Inc()
		s.logger.Info().
			Str("asset_id", record.AssetID).
			Str("operator", operator.Ref).
			Msg("check-in without student match")
		s.publishCheckIn(result, operator)
		return result, nil
	}

	checkedInAt := s.now().UTC()
	update := repository.CheckInUpdate{
		Timestamp: checkedInAt,
		AssetID:   record.AssetID,
		Tag:       record.Tag,
		Serial:    record.CustomFields[s.fields.Serial],
		Type:      record.CustomFields[s.fields.Type],
	}

	if err := s.applyWithRetry(ctx, student, update); err != nil {
		observability.CheckIns().WithLabelValues("conflict").Inc()
		return dto.CheckInResult{}, err
	}

	result.StudentUpdated = true
	result.StudentID = student.StudentID
	result.StudentName = student.Name
	result.CheckedInAt = &checkedInAt

	observability.CheckIns().WithLabelValues("success").Inc()
	s.logger.Info().
		Str("asset_id", record.AssetID).
		Str("student_id", student.StudentID).
		Str("operator", operator.Ref).
		Msg("device checked in")
	s.publishCheckIn(result, operator)
	return result, nil
}

func (s *checkInService) AssignTag(ctx context.Context, req dto.AssignTagRequest, operator Operator) (dto.AssignTagResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AssignTagResult{}, err
	}

	tag, err := s.tags.Next(ctx, req.Prefix)
	if err != nil {
		return dto.AssignTagResult{}, err
	}

	fields := map[string]string{
		s.fields.Serial: req.Serial,
		s.fields.Type:   req.DeviceType,
	}

	assetID, err := s.tracker.CreateAsset(ctx, tag, fields)
	if err != nil {
		// The tag is burned, not recycled: the counter already advanced
		// and reuse risks a collision with a half-created asset.
		s.logger.Warn().
			Err(err).
			Str("tag", tag).
			Str("operator", operator.Ref).
			Msg("asset creation failed after tag issue; tag burned")
		return dto.AssignTagResult{}, err
	}

	observability.TagsIssued().WithLabelValues(req.Prefix).Inc()
	s.logger.Info().
		Str("tag", tag).
		Str("asset_id", assetID).
		Str("operator", operator.Ref).
		Msg("asset tag assigned")
	return dto.AssignTagResult{Tag: tag, AssetID: assetID}, nil
}

// resolveAsset looks the reference up as a cached asset ID, then a tracker
// asset ID, then a tag. Fresh records are cached for the next scan.
func (s *checkInService) resolveAsset(ctx context.Context, assetRef string) (tracker.AssetRecord, error) {
	if record, hit := s.assets.Get(ctx, assetRef); hit {
		return record, nil
	}

	record, err := s.tracker.Get(ctx, assetRef)
	if apperr.IsKind(err, apperr.KindNotFound) {
		record, err = s.tracker.FindByTag(ctx, assetRef)
	}
	if err != nil {
		return tracker.AssetRecord{}, err
	}

	s.assets.Put(ctx, record.AssetID, record, cache.DefaultTTL)
	return record, nil
}

// resolveStudent maps the asset's owner reference onto a ledger row. An
// owner with no matching student is a legitimate outcome, not an error.
func (s *checkInService) resolveStudent(ctx context.Context, record tracker.AssetRecord) (models.StudentRecord, bool, error) {
	if record.OwnerRef == nil || *record.OwnerRef == "" {
		return models.StudentRecord{}, false, nil
	}

	student, err := s.students.GetByTrackerUserRef(ctx, *record.OwnerRef)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.StudentRecord{}, false, nil
	}
	if err != nil {
		return models.StudentRecord{}, false, err
	}
	return student, true, nil
}

// applyWithRetry writes the check-in fields under optimistic locking,
// reloading the row once if a concurrent writer advanced the version.
func (s *checkInService) applyWithRetry(ctx context.Context, student models.StudentRecord, update repository.CheckInUpdate) error {
	err := s.students.ApplyCheckIn(ctx, student.StudentID, student.Version, update)
	if !errors.Is(err, repository.ErrVersionConflict) {
		return err
	}

	reloaded, err := s.students.GetByID(ctx, student.StudentID)
	if err != nil {
		return err
	}
	err = s.students.ApplyCheckIn(ctx, reloaded.StudentID, reloaded.Version, update)
	if errors.Is(err, repository.ErrVersionConflict) {
		return apperr.Wrap(apperr.KindConflict,
			"student record is being modified concurrently", err)
	}
	return err
}

func (s *checkInService) publishCheckIn(result dto.CheckInResult, operator Operator) {
	s.publisher.CheckIn(events.CheckInEvent{
		AssetID:        result.AssetID,
		Tag:            result.Tag,
		StudentID:      result.StudentID,
		StudentUpdated: result.StudentUpdated,
		Operator:       operator.Ref,
		At:             s.now().UTC(),
	})
}
