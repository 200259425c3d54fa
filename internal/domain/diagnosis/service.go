package diagnosis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/blobstore"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/classifier"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/metrics"
)

const defaultMaxUpload = 10 << 20

type Service struct {
	repo       Repository
	classifier classifier.Classifier
	store      blobstore.Store
	maxUpload  int64
	metrics    *metrics.Collector
	logger     zerolog.Logger
}

func NewService(repo Repository, cls classifier.Classifier, store blobstore.Store, maxUpload int64) *Service {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Service{repo: repo, classifier: cls, store: store, maxUpload: maxUpload, logger: zerolog.Nop()}
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l
}

// SetMetrics attaches an optional collector.
func (s *Service) SetMetrics(m *metrics.Collector) {
	s.metrics = m
}

func (s *Service) MaxUploadSize() int64 {
	return s.maxUpload
}

// AnalyzeInput is one uploaded image plus its questionnaire.
type AnalyzeInput struct {
	UserID      uuid.UUID
	FileName    string
	ContentType string
	Image       io.Reader
	Metadata    ClinicalMetadata
}

// Analyze classifies the image, stores it and persists the resulting
// diagnosis. Nothing is kept if any step fails.
func (s *Service) Analyze(ctx context.Context, in AnalyzeInput) (*Diagnosis, error) {
	if in.UserID == uuid.Nil {
		return nil, fmt.Errorf("user_id is required")
	}
	if err := blobstore.ValidateImage(in.ContentType); err != nil {
		return nil, ErrInvalidImage
	}

	data, err := io.ReadAll(io.LimitReader(in.Image, s.maxUpload+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > s.maxUpload {
		return nil, ErrImageTooLarge
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidImage)
	}

	res, err := s.classifier.Classify(ctx, data, in.ContentType)
	if err != nil {
		if errors.Is(err, classifier.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrClassifierDown, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrClassificationFail, err)
	}

	key := blobstore.ImageKey(in.UserID, in.FileName)
	if _, err := s.store.Put(ctx, key, bytes.NewReader(data), in.ContentType, s.maxUpload); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	d := &Diagnosis{
		UserID:             in.UserID,
		Severity:           res.Severity,
		Confidence:         res.Confidence,
		SeverityScores:     res.SeverityScores,
		LesionCounts:       res.LesionCounts,
		AcneType:           res.AcneType,
		AffectedAreas:      res.AffectedAreas,
		ClinicalNotes:      ClinicalNotes(res.Severity, res.LesionCounts, in.Metadata),
		RecommendedUrgency: Urgency(res.Severity),
		ImageKey:           key,
		Metadata:           in.Metadata,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		// The row was never written, so the image is orphaned.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if derr := s.store.Delete(cleanupCtx, key); derr != nil {
			s.logger.Warn().Err(derr).Str("key", key).Msg("failed to remove image after diagnosis insert failed")
		}
		return nil, err
	}
	s.metrics.DiagnosisStored(d.Severity)
	return d, nil
}

// Lookup returns the diagnosis only if ownerID owns it.
func (s *Service) Lookup(ctx context.Context, id, ownerID uuid.UUID) (*Diagnosis, error) {
	return s.repo.GetByOwner(ctx, id, ownerID)
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Diagnosis, int, error) {
	return s.repo.ListByOwner(ctx, ownerID, limit, offset)
}

// Image streams the stored upload of an owned diagnosis. The caller closes
// the reader.
func (s *Service) Image(ctx context.Context, id, ownerID uuid.UUID) (io.ReadCloser, *blobstore.Object, error) {
	d, err := s.repo.GetByOwner(ctx, id, ownerID)
	if err != nil {
		return nil, nil, err
	}
	rc, obj, err := s.store.Get(ctx, d.ImageKey)
	if errors.Is(err, blobstore.ErrBlobNotFound) {
		return nil, nil, ErrNotFound
	}
	return rc, obj, err
}
