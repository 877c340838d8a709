package local

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
	"github.com/utafrali/ClassifiedsGo/services/media/internal/imaging"
)

var storedName = regexp.MustCompile(`^avatars/[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\.png$`)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "media")
	s, err := New(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func pngImage(data string) *imaging.EncodedImage {
	return &imaging.EncodedImage{Data: []byte(data), Format: imaging.FormatPNG, Width: 1, Height: 1}
}

func TestStore_WritesUniqueFiles(t *testing.T) {
	s, dir := newStore(t)
	ctx := context.Background()

	first, err := s.Store(ctx, pngImage("first"), domain.CategoryAvatars)
	require.NoError(t, err)
	second, err := s.Store(ctx, pngImage("second!"), domain.CategoryAvatars)
	require.NoError(t, err)

	assert.Regexp(t, storedName, first.RelativePath)
	assert.NotEqual(t, first.RelativePath, second.RelativePath)
	assert.Equal(t, int64(5), first.SizeBytes)
	assert.Equal(t, int64(7), second.SizeBytes)

	got, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(first.RelativePath)))
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
}

func TestStore_CreatesCategoryDirectories(t *testing.T) {
	s, dir := newStore(t)

	out, err := s.Store(context.Background(), &imaging.EncodedImage{Data: []byte{0xff, 0xd8}, Format: imaging.FormatJPEG}, domain.CategoryAds)
	require.NoError(t, err)
	assert.Regexp(t, `^ads/.+\.jpg$`, out.RelativePath)

	info, err := os.Stat(filepath.Join(dir, "ads"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStore_RejectsBadInput(t *testing.T) {
	s, dir := newStore(t)
	ctx := context.Background()

	for _, category := range []string{"", "..", "../outside", "a/b"} {
		_, err := s.Store(ctx, pngImage("x"), category)
		assert.ErrorIs(t, err, domain.ErrStorage, category)
	}
	_, err := s.Store(ctx, &imaging.EncodedImage{Format: imaging.FormatPNG}, domain.CategoryAvatars)
	assert.ErrorIs(t, err, domain.ErrStorage)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "outside"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStore_CanceledContext(t *testing.T) {
	s, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Store(ctx, pngImage("x"), domain.CategoryAvatars)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_UnwritableCategory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	s, dir := newStore(t)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "avatars"), 0o500))

	_, err := s.Store(context.Background(), pngImage("x"), domain.CategoryAvatars)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestDelete(t *testing.T) {
	s, dir := newStore(t)
	ctx := context.Background()

	out, err := s.Store(ctx, pngImage("bye"), domain.CategoryAvatars)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, out.RelativePath))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(out.RelativePath)))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// Deleting twice is a no-op.
	require.NoError(t, s.Delete(ctx, out.RelativePath))
	require.NoError(t, s.Delete(ctx, ""))
}

func TestDelete_CannotEscapeRoot(t *testing.T) {
	s, dir := newStore(t)
	outside := filepath.Join(filepath.Dir(dir), "keep.txt")
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0o644))

	err := s.Delete(context.Background(), "../keep.txt")
	assert.ErrorIs(t, err, domain.ErrStorage)

	_, err = os.Stat(outside)
	assert.NoError(t, err)
}

func TestCheck(t *testing.T) {
	s, _ := newStore(t)
	assert.NoError(t, s.Check(context.Background()))
}
