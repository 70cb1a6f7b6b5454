package service

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/permitflow-api/internal/dto"
	appErrors "github.com/noah-isme/permitflow-api/pkg/errors"
	"github.com/noah-isme/permitflow-api/pkg/storage"
)

func newTestUploader(blobs *memoryBlobs, maxSize int64) *EvidenceUploader {
	signer := storage.NewFileURLSigner("secret", "https://api.example.com/api/v1/files")
	return NewEvidenceUploader(blobs, signer, EvidenceUploaderConfig{MaxFileSize: maxSize}, NewMetricsService(), nil)
}

func TestEvidenceUploaderCheck(t *testing.T) {
	u := newTestUploader(&memoryBlobs{objects: map[string][]byte{}}, 64)
	pdf := []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	require.NoError(t, u.Check([]dto.UploadedFile{
		{Slot: SlotPPE, Filename: "a.png", Content: pngBytes},
		{Slot: SlotCertifications, Filename: "cert.pdf", Content: pdf},
	}))

	err := u.Check([]dto.UploadedFile{
		{Slot: "selfie", Filename: "a.png", Content: pngBytes},
		{Slot: SlotTeam, Filename: "a.png", Content: pngBytes},
		{Slot: SlotTeam, Filename: "b.png", Content: pngBytes},
		{Slot: SlotSiteConditions, Filename: "c.png"},
		{Slot: SlotPPE, Filename: "big.png", Content: append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{0}, 64)...)},
	})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	msg := appErrors.FromError(err).Message
	assert.Contains(t, msg, "uploadedFiles.selfie: is not a known upload slot")
	assert.Contains(t, msg, "uploadedFiles.team: was uploaded more than once")
	assert.Contains(t, msg, "uploadedFiles.siteConditions: is empty")
	assert.Contains(t, msg, "uploadedFiles.ppe: exceeds 64 bytes limit")
}

func TestEvidenceUploaderStore(t *testing.T) {
	blobs := &memoryBlobs{objects: map[string][]byte{}}
	u := newTestUploader(blobs, 0)

	urls, keys, err := u.Store("PTW/RV/S1/2024-25/ABC123", []dto.UploadedFile{
		{Slot: SlotPPE, Filename: "ppe kit.png", Content: pngBytes},
		{Slot: SlotSiteConditions, Filename: "../../site.png", Content: pngBytes},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"permits/PTW-RV-S1-2024-25-ABC123/ppe-ppe_kit.png",
		"permits/PTW-RV-S1-2024-25-ABC123/siteConditions-site.png",
	}, keys)
	assert.Empty(t, urls.Team)
	require.NotEmpty(t, urls.PPE)

	signer := storage.NewFileURLSigner("secret", "https://api.example.com/api/v1/files")
	token := urls.PPE[len("https://api.example.com/api/v1/files?token="):]
	key, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, keys[0], key)

	u.Remove(keys)
	assert.Empty(t, blobs.objects)
}
