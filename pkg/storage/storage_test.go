package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileURLSignerRoundTrip(t *testing.T) {
	signer := NewFileURLSigner("secret", "https://api.example.com/api/v1/files/")
	url, err := signer.URL("permits/PTW-RV-S1/ppe-photo.jpg")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "https://api.example.com/api/v1/files?token="))

	token := strings.TrimPrefix(url, "https://api.example.com/api/v1/files?token=")
	key, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "permits/PTW-RV-S1/ppe-photo.jpg", key)
}

func TestFileURLSignerRejectsTampering(t *testing.T) {
	signer := NewFileURLSigner("secret", "/files")
	token, err := signer.Token("permits/a/team.png")
	require.NoError(t, err)

	other := NewFileURLSigner("other", "/files")
	_, err = other.Parse(token)
	require.Error(t, err)

	_, err = signer.Parse("bm9wZQ.deadbeef")
	require.Error(t, err)
	_, err = signer.Parse("garbage")
	require.Error(t, err)

	_, err = NewFileURLSigner("", "/files").Token("x")
	require.Error(t, err)
}

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	key, err := store.SaveStream("permits/PTW/ppe.jpg", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	require.Equal(t, "permits/PTW/ppe.jpg", key)

	f, err := store.Open(key)
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Equal(t, "jpeg-bytes", string(body))

	require.NoError(t, store.Delete(key))
	require.NoError(t, store.Delete(key))
	_, err = store.Open(key)
	require.Error(t, err)
}

func TestCleanKeyRejectsTraversal(t *testing.T) {
	clean, err := CleanKey("../../etc/passwd")
	require.NoError(t, err)
	require.Equal(t, "etc/passwd", clean)

	_, err = CleanKey("  ")
	require.Error(t, err)
	_, err = CleanKey("/")
	require.Error(t, err)
}

func TestSafeName(t *testing.T) {
	require.Equal(t, "site_photo_1.jpg", SafeName("site photo#1.jpg"))
	require.Equal(t, "passwd", SafeName("../../passwd"))
	require.Equal(t, "file", SafeName("..."))
}
