package service

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/noah-isme/permitflow-api/internal/dto"
	"github.com/noah-isme/permitflow-api/internal/models"
	appErrors "github.com/noah-isme/permitflow-api/pkg/errors"
	"github.com/noah-isme/permitflow-api/pkg/storage"
)

// Evidence slots accepted on a submission.
const (
	SlotPPE            = "ppe"
	SlotTeam           = "team"
	SlotCertifications = "certifications"
	SlotSiteConditions = "siteConditions"
)

// EvidenceSlots lists the accepted upload slots in form order.
var EvidenceSlots = []string{SlotPPE, SlotTeam, SlotCertifications, SlotSiteConditions}

type blobStore interface {
	SaveStream(key string, r io.Reader) (string, error)
	Delete(key string) error
}

type blobURLSigner interface {
	URL(key string) (string, error)
}

// EvidenceUploaderConfig holds upload limits.
type EvidenceUploaderConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
}

// EvidenceUploader validates and stores evidence photos, returning durable retrieval URLs.
type EvidenceUploader struct {
	store   blobStore
	signer  blobURLSigner
	cfg     EvidenceUploaderConfig
	metrics *MetricsService
	logger  *zap.Logger
}

// NewEvidenceUploader constructs the uploader.
func NewEvidenceUploader(store blobStore, signer blobURLSigner, cfg EvidenceUploaderConfig, metrics *MetricsService, logger *zap.Logger) *EvidenceUploader {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"image/jpeg", "image/png", "image/webp", "image/heic", "application/pdf"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvidenceUploader{store: store, signer: signer, cfg: cfg, metrics: metrics, logger: logger}
}

// Check rejects unknown or duplicate slots, oversized files and disallowed content types.
func (u *EvidenceUploader) Check(files []dto.UploadedFile) error {
	seen := make(map[string]struct{}, len(files))
	var problems []string
	for _, f := range files {
		path := "uploadedFiles." + f.Slot
		if !isEvidenceSlot(f.Slot) {
			problems = append(problems, path+": is not a known upload slot")
			continue
		}
		if _, dup := seen[f.Slot]; dup {
			problems = append(problems, path+": was uploaded more than once")
			continue
		}
		seen[f.Slot] = struct{}{}
		switch {
		case len(f.Content) == 0:
			problems = append(problems, path+": is empty")
		case int64(len(f.Content)) > u.cfg.MaxFileSize:
			problems = append(problems, fmt.Sprintf("%s: exceeds %d bytes limit", path, u.cfg.MaxFileSize))
		default:
			if detected := mimetype.Detect(f.Content); !u.allowed(detected) {
				problems = append(problems, fmt.Sprintf("%s: content type %s is not allowed", path, detected.String()))
			}
		}
	}
	if len(problems) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "Validation failed: "+strings.Join(problems, ", "))
	}
	return nil
}

// Store writes files under permits/<tracking>/ and returns their URLs plus the stored keys
// so a failed insert can remove them again.
func (u *EvidenceUploader) Store(trackingID string, files []dto.UploadedFile) (models.UploadedFiles, []string, error) {
	var urls models.UploadedFiles
	keys := make([]string, 0, len(files))
	dir := "permits/" + strings.ReplaceAll(trackingID, "/", "-")
	for _, f := range files {
		key, err := u.store.SaveStream(dir+"/"+f.Slot+"-"+storage.SafeName(f.Filename), bytes.NewReader(f.Content))
		if err != nil {
			u.Remove(keys)
			return models.UploadedFiles{}, nil, appErrors.Wrap(err, appErrors.ErrUploadFailed.Code, appErrors.ErrUploadFailed.Status, "File upload failed.")
		}
		keys = append(keys, key)
		u.metrics.ObserveUpload(int64(len(f.Content)))

		link, err := u.signer.URL(key)
		if err != nil {
			u.Remove(keys)
			return models.UploadedFiles{}, nil, appErrors.Wrap(err, appErrors.ErrUploadFailed.Code, appErrors.ErrUploadFailed.Status, "File upload failed.")
		}
		switch f.Slot {
		case SlotPPE:
			urls.PPE = link
		case SlotTeam:
			urls.Team = link
		case SlotCertifications:
			urls.Certifications = link
		case SlotSiteConditions:
			urls.SiteConditions = link
		}
	}
	return urls, keys, nil
}

// Remove deletes stored blobs, logging failures.
func (u *EvidenceUploader) Remove(keys []string) {
	for _, key := range keys {
		if err := u.store.Delete(key); err != nil {
			u.logger.Warn("failed to remove orphaned upload", zap.String("key", key), zap.Error(err))
		}
	}
}

func (u *EvidenceUploader) allowed(detected *mimetype.MIME) bool {
	for _, mt := range u.cfg.AllowedMIMEs {
		if detected.Is(mt) {
			return true
		}
	}
	return false
}

func isEvidenceSlot(slot string) bool {
	for _, s := range EvidenceSlots {
		if s == slot {
			return true
		}
	}
	return false
}
