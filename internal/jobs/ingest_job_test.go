package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maheshrc27/postwatcher/internal/ledger"
	"github.com/maheshrc27/postwatcher/internal/models"
	"github.com/maheshrc27/postwatcher/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeAssets struct {
	uploads []models.Asset
	err     error
	since   []time.Time
}

func (f *fakeAssets) ListSince(ctx context.Context, since time.Time) ([]models.Asset, error) {
	f.since = append(f.since, since)
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Asset
	for _, a := range f.uploads {
		if a.CreatedAt.After(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAssets) ListAll(ctx context.Context) ([]models.Asset, error) {
	return f.uploads, f.err
}

type fakePosts struct {
	posts []*models.ScheduledPost
	err   error
}

func (f *fakePosts) Create(ctx context.Context, post *models.ScheduledPost) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	p := *post
	p.ID = int64(len(f.posts) + 1)
	f.posts = append(f.posts, &p)
	return p.ID, nil
}

func (f *fakePosts) LatestScheduledTime(ctx context.Context) (time.Time, bool, error) {
	var latest time.Time
	for _, p := range f.posts {
		if p.ScheduledTime.After(latest) {
			latest = p.ScheduledTime
		}
	}
	return latest, len(f.posts) > 0, nil
}

func (f *fakePosts) ListImagePaths(ctx context.Context) ([]string, error) {
	paths := make([]string, 0, len(f.posts))
	for _, p := range f.posts {
		paths = append(paths, p.ImagePath)
	}
	return paths, nil
}

func (f *fakePosts) ListUpcoming(ctx context.Context, after time.Time, limit int) ([]*models.ScheduledPost, error) {
	return f.posts, nil
}

type fakeConfigs struct {
	values map[string]string
}

func (f *fakeConfigs) GetAll(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out, nil
}

func (f *fakeConfigs) Upsert(ctx context.Context, name, value string) error {
	f.values[name] = value
	return nil
}

type mockCaptions struct {
	mock.Mock
}

func (m *mockCaptions) Generate(ctx context.Context, assetID string, used []int, url string) (string, error) {
	args := m.Called(ctx, assetID, used, url)
	return args.String(0), args.Error(1)
}

type fakeNotifier struct {
	notified []int64
	err      error
}

func (f *fakeNotifier) NotifyDue(ctx context.Context, post *models.ScheduledPost) error {
	f.notified = append(f.notified, post.ID)
	return f.err
}

type fixture struct {
	assets   *fakeAssets
	posts    *fakePosts
	configs  *fakeConfigs
	captions *mockCaptions
	notifier *fakeNotifier
	ledger   *ledger.Ledger
	dir      string
	job      *IngestJob
}

var base = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

func upload(id string, bytes int64, at time.Time) models.Asset {
	return models.Asset{ID: id, CreatedAt: at, Bytes: bytes, Format: "jpg", URL: "https://pub.example.r2.dev/" + id + ".jpg"}
}

func newFixture(t *testing.T, uploads ...models.Asset) *fixture {
	dir := t.TempDir()
	f := &fixture{
		assets:   &fakeAssets{uploads: uploads},
		posts:    &fakePosts{},
		configs:  &fakeConfigs{values: map[string]string{"frequency": "daily", "dontuseuntil": "10"}},
		captions: &mockCaptions{},
		notifier: &fakeNotifier{},
		ledger:   ledger.Load(filepath.Join(dir, "processed_images.json")),
		dir:      dir,
	}
	f.job = NewIngestJob(
		f.assets,
		f.ledger,
		ledger.NewAuditLog(filepath.Join(dir, "uploads_log.txt")),
		f.captions,
		f.posts,
		f.configs,
		schedule.NewAllocator(f.posts, time.UTC),
		f.notifier,
	)
	return f
}

func TestRunPassDuplicateUploadsProduceOnePost(t *testing.T) {
	f := newFixture(t,
		upload("sunset", 4096, base),
		upload("sunset-again", 4096, base.Add(3*time.Second)),
	)
	f.captions.On("Generate", mock.Anything, "sunset", []int{}, mock.Anything).
		Return("Great sunset! Recommended Time: 3:00 PM", nil).Once()

	res, err := f.job.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 1, res.Scheduled)
	assert.Equal(t, 1, res.Duplicates)
	require.Len(t, f.posts.posts, 1)

	post := f.posts.posts[0]
	assert.Equal(t, "sunset", post.ImagePath)
	assert.Equal(t, "Great sunset!", post.Caption)
	assert.Equal(t, models.PostStatusPending, post.Posted)
	assert.Equal(t, 15, post.ScheduledTime.Hour())
	assert.Equal(t, 0, post.ScheduledTime.Minute())
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 10), post.DontUseUntil, time.Minute)
	assert.Equal(t, []int64{1}, f.notifier.notified)

	raw, err := os.ReadFile(filepath.Join(f.dir, "uploads_log.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.False(t, strings.HasSuffix(lines[0], "DUPLICATE"))
	assert.True(t, strings.HasSuffix(lines[1], "| DUPLICATE"))

	f.captions.AssertExpectations(t)
}

func TestRunPassSlotsAdvanceAndHoursAreHinted(t *testing.T) {
	f := newFixture(t,
		upload("a", 1, base),
		upload("b", 2, base.Add(time.Minute)),
	)
	f.configs.values["frequency"] = "weekly"
	latest := time.Date(2025, 7, 20, 18, 0, 0, 0, time.UTC)
	f.posts.posts = []*models.ScheduledPost{{ID: 1, ImagePath: "older", ScheduledTime: latest}}

	f.captions.On("Generate", mock.Anything, "a", []int{}, mock.Anything).
		Return("First Recommended Time: 9:00 AM", nil).Once()
	f.captions.On("Generate", mock.Anything, "b", []int{9}, mock.Anything).
		Return("Second Recommended Time: 6:00 PM", nil).Once()

	_, err := f.job.RunPass(context.Background())
	require.NoError(t, err)

	require.Len(t, f.posts.posts, 3)
	first, second := f.posts.posts[1], f.posts.posts[2]
	assert.True(t, first.ScheduledTime.Equal(time.Date(2025, 7, 27, 9, 0, 0, 0, time.UTC)))
	assert.True(t, second.ScheduledTime.Equal(time.Date(2025, 8, 3, 18, 0, 0, 0, time.UTC)))
	f.captions.AssertExpectations(t)
}

func TestRunPassWatermarkPreventsRefetch(t *testing.T) {
	f := newFixture(t, upload("a", 1, base), upload("b", 2, base.Add(time.Hour)))
	f.captions.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("Caption", nil)

	_, err := f.job.RunPass(context.Background())
	require.NoError(t, err)
	assert.True(t, f.ledger.Watermark().Equal(base.Add(time.Hour)))

	res, err := f.job.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Fetched)
	assert.True(t, f.assets.since[1].Equal(base.Add(time.Hour)))
	assert.Len(t, f.posts.posts, 2)
	f.captions.AssertNumberOfCalls(t, "Generate", 2)

	// A later upload is picked up on the next pass.
	f.assets.uploads = append(f.assets.uploads, upload("c", 3, base.Add(2*time.Hour)))
	res, err = f.job.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fetched)
	assert.Len(t, f.posts.posts, 3)
}

func TestRunPassMissingMarkerFallsBackToNoon(t *testing.T) {
	f := newFixture(t, upload("a", 1, base))
	f.captions.On("Generate", mock.Anything, "a", mock.Anything, mock.Anything).
		Return("A caption without any time", nil)

	_, err := f.job.RunPass(context.Background())
	require.NoError(t, err)

	require.Len(t, f.posts.posts, 1)
	assert.Equal(t, "A caption without any time", f.posts.posts[0].Caption)
	assert.Equal(t, 12, f.posts.posts[0].ScheduledTime.Hour())
}

func TestRunPassNothingAvailableSkips(t *testing.T) {
	f := newFixture(t, upload("a", 1, base))
	f.posts.posts = []*models.ScheduledPost{{ID: 1, ImagePath: "a", ScheduledTime: base}}

	res, err := f.job.RunPass(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Skipped)
	assert.Equal(t, "0", f.configs.values["available_pictures"])
	assert.Equal(t, 0, f.ledger.Len())
	f.captions.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAvailablePictures(t *testing.T) {
	var uploads []models.Asset
	for i := 0; i < 10; i++ {
		uploads = append(uploads, upload(string(rune('a'+i)), int64(i), base.Add(time.Duration(i)*time.Minute)))
	}
	f := newFixture(t, uploads...)
	for _, id := range []string{"a", "c", "e", "g"} {
		f.posts.posts = append(f.posts.posts, &models.ScheduledPost{ImagePath: id})
	}

	count, err := f.job.AvailablePictures(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, count)
	assert.Equal(t, "6", f.configs.values["available_pictures"])
}

func TestRunPassCaptionErrorStopsPass(t *testing.T) {
	f := newFixture(t, upload("a", 1, base), upload("b", 2, base.Add(time.Minute)))
	f.captions.On("Generate", mock.Anything, "a", mock.Anything, mock.Anything).
		Return("", errors.New("503 from caption service"))

	res, err := f.job.RunPass(context.Background())

	assert.ErrorContains(t, err, "503 from caption service")
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, f.posts.posts)
	assert.True(t, f.ledger.Seen("a"))
	assert.False(t, f.ledger.Seen("b"))
}

func TestRunPassAssetStoreError(t *testing.T) {
	f := newFixture(t)
	f.assets.err = errors.New("r2 unavailable")

	_, err := f.job.RunPass(context.Background())
	assert.ErrorContains(t, err, "r2 unavailable")
}

func TestRunPassNotifierFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, upload("a", 1, base))
	f.notifier.err = errors.New("redis down")
	f.captions.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("ok", nil)

	res, err := f.job.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Scheduled)
}

func TestRunPassIgnoresOverwrittenObject(t *testing.T) {
	f := newFixture(t, upload("a", 1, base))
	f.captions.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("ok", nil)

	_, err := f.job.RunPass(context.Background())
	require.NoError(t, err)

	f.assets.uploads = []models.Asset{upload("a", 1, base.Add(time.Hour)), upload("z", 99, base.Add(2*time.Hour))}
	res, err := f.job.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Scheduled)
	assert.Len(t, f.posts.posts, 2)
}

func TestSnapshotAfterPass(t *testing.T) {
	f := newFixture(t, upload("a", 1, base), upload("b", 1, base.Add(time.Second)))
	f.captions.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("ok", nil)

	before := f.job.Snapshot()
	assert.Nil(t, before.LastPass)
	assert.Equal(t, 0, before.LedgerEntries)

	_, err := f.job.RunPass(context.Background())
	require.NoError(t, err)

	snap := f.job.Snapshot()
	require.NotNil(t, snap.LastPass)
	require.NotNil(t, snap.Config)
	assert.Equal(t, 2, snap.LedgerEntries)
	assert.Equal(t, 1, snap.Duplicates)
	assert.Equal(t, "daily", snap.Config.Frequency)
	assert.True(t, snap.Watermark.Equal(base.Add(time.Second)))
}
