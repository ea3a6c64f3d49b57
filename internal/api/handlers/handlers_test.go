package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stationhub/internal/models"
	"stationhub/internal/nowplaying"
	"stationhub/internal/quality"
	"stationhub/internal/ratelimit"
	"stationhub/internal/station"
	"stationhub/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
	RegisterValidators()
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.Station{}, &models.Feedback{}, &models.Users{}))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *station.Service {
	t.Helper()
	limiter := ratelimit.NewMemoryStore(0)
	t.Cleanup(func() { limiter.Close() })
	return station.NewService(station.NewGormStore(db), limiter, station.DefaultWindows)
}

func seed(t *testing.T, db *gorm.DB, name string, score float64, active bool) *models.Station {
	t.Helper()
	st := &models.Station{Name: name, StreamURL: "http://example.com/" + name, CountryCode: "FR"}
	require.NoError(t, db.Create(st).Error)
	require.NoError(t, db.Model(st).Updates(map[string]interface{}{"quality_score": score, "is_active": active}).Error)
	return st
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListStationsOnlyActive(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seed(t, db, "visible", 55, true)
	seed(t, db, "better", 95, true)
	seed(t, db, "hidden", 99, false)

	h := NewStationHandler(db, svc, nil, nil)
	r := gin.New()
	r.GET("/stations", h.ListStations)
	r.GET("/stations/featured", h.GetFeatured)

	w := do(r, http.MethodGet, "/stations", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []models.Station `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 2, resp.Meta.Total)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "better", resp.Data[0].Name)
	assert.Equal(t, "visible", resp.Data[1].Name)

	w = do(r, http.MethodGet, "/stations/featured", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "better", resp.Data[0].Name)
}

func TestGetStationByPublicID(t *testing.T) {
	db := newTestDB(t)
	st := seed(t, db, "kexp", 70, true)

	h := NewStationHandler(db, newTestService(t, db), nil, nil)
	r := gin.New()
	r.GET("/stations/:id", h.GetStation)

	w := do(r, http.MethodGet, "/stations/"+st.PublicID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"kexp"`)

	w = do(r, http.MethodGet, "/stations/9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetByTier(t *testing.T) {
	db := newTestDB(t)
	seed(t, db, "top", 100, true)
	seed(t, db, "mid", 75, true)

	h := NewStationHandler(db, newTestService(t, db), nil, nil)
	r := gin.New()
	r.GET("/stations/tier/:tier", h.GetByTier)

	w := do(r, http.MethodGet, "/stations/tier/premium", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"top"`)
	assert.NotContains(t, w.Body.String(), `"name":"mid"`)

	w = do(r, http.MethodGet, "/stations/tier/legendary", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedbackEndpoint(t *testing.T) {
	db := newTestDB(t)
	st := seed(t, db, "news", 0, true)

	h := NewEngagementHandler(db, newTestService(t, db), 50)
	r := gin.New()
	r.POST("/stations/:id/feedback", h.SubmitFeedback)
	r.POST("/stations/:id/play", h.RecordPlay)

	path := fmt.Sprintf("/stations/%d/feedback", st.ID)

	w := do(r, http.MethodPost, path, gin.H{"feedback_type": "too_loud"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, path, gin.H{"feedback_type": "great_quality", "comment": "crisp"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Quality struct {
			Score         float64 `json:"quality_score"`
			FeedbackCount int     `json:"feedback_count"`
			Hidden        bool    `json:"hidden"`
		} `json:"quality"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Quality.FeedbackCount)
	assert.False(t, resp.Quality.Hidden)

	// Same client, same station, same window
	w = do(r, http.MethodPost, path, gin.H{"feedback_type": "great_quality"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = do(r, http.MethodPost, "/stations/4242/play", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResolveFeedbackBadID(t *testing.T) {
	db := newTestDB(t)
	h := NewEngagementHandler(db, newTestService(t, db), 50)
	r := gin.New()
	r.PUT("/feedback/:id/resolve", h.ResolveFeedback)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPut, "/feedback/abc/resolve", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPut, "/feedback/77/resolve", nil).Code)
}

func TestLogin(t *testing.T) {
	db := newTestDB(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Users{Username: "ed", PasswordHash: string(hash), Role: models.RoleEditor}).Error)

	secret := []byte("test-secret")
	h := NewAuthHandler(db, secret, 0)
	r := gin.New()
	r.POST("/auth/login", h.Login)

	w := do(r, http.MethodPost, "/auth/login", gin.H{"username": "ed", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/auth/login", gin.H{"username": "ghost", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/auth/login", gin.H{"username": "ed", "password": "correct horse"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (any, error) { return secret, nil })
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, claims["role"])
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	db := newTestDB(t)
	h := NewAuthHandler(db, []byte("s"), 0)
	r := gin.New()
	r.POST("/auth/register", h.Register)

	body := gin.H{"username": "newbie", "password": "longenough"}
	w := do(r, http.MethodPost, "/auth/register", body)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"viewer"`)

	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/auth/register", body).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/auth/register", gin.H{"username": "x", "password": "short"}).Code)
}

func TestStats(t *testing.T) {
	db := newTestDB(t)
	seed(t, db, "a", 92, true)
	seed(t, db, "b", 65, true)
	seed(t, db, "c", 30, false)
	require.NoError(t, db.Create(&models.Feedback{StationID: 1, FeedbackType: "stream_broken"}).Error)

	h := NewStatsHandler(db)
	r := gin.New()
	r.GET("/stats", h.GetStats)

	w := do(r, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Stats struct {
			Total  int64 `json:"total_stations"`
			Active int64 `json:"active_stations"`
			Hidden int64 `json:"hidden_stations"`
			Open   int64 `json:"open_feedback"`
		} `json:"stats"`
		Tiers map[string]int64 `json:"tiers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 3, resp.Stats.Total)
	assert.EqualValues(t, 2, resp.Stats.Active)
	assert.EqualValues(t, 1, resp.Stats.Hidden)
	assert.EqualValues(t, 1, resp.Stats.Open)
	assert.EqualValues(t, 1, resp.Tiers["premium"])
	assert.EqualValues(t, 1, resp.Tiers["fair"])
	assert.EqualValues(t, 0, resp.Tiers["poor"])
}

type stubTracks struct {
	track nowplaying.Track
	err   error
}

func (s stubTracks) Current(context.Context, string, string) (nowplaying.Track, error) {
	return s.track, s.err
}

func TestNowPlaying(t *testing.T) {
	db := newTestDB(t)
	st := seed(t, db, "fip", 80, true)
	path := fmt.Sprintf("/stations/%d/now-playing", st.ID)

	route := func(src TrackSource) *gin.Engine {
		h := NewMediaHandler(db, newTestService(t, db), nil, nil, src)
		r := gin.New()
		r.GET("/stations/:id/now-playing", h.NowPlaying)
		return r
	}

	w := do(route(stubTracks{err: nowplaying.ErrNotConfigured}), http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(route(stubTracks{err: fmt.Errorf("dial: %w", context.DeadlineExceeded)}), http.MethodGet, path, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = do(route(stubTracks{track: nowplaying.Track{Artist: "Nina Simone", Title: "Sinnerman"}}), http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sinnerman")
}

func TestDeleteStationRemovesArtwork(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	store := storage.NewWithProvider(storage.NewLocalProvider(t.TempDir()), "images", "/images")

	st := seed(t, db, "bluesy", 70, true)
	url, err := store.UploadImage(ctx, "stations/bluesy.png", bytes.NewReader([]byte("png")), "image/png")
	require.NoError(t, err)
	require.NoError(t, db.Model(st).Update("local_image_url", url).Error)

	h := NewStationHandler(db, newTestService(t, db), nil, store)
	r := gin.New()
	r.GET("/stations/:id/image", h.GetImage)
	r.DELETE("/stations/:id", h.DeleteStation)
	path := fmt.Sprintf("/stations/%d", st.ID)

	w := do(r, http.MethodGet, path+"/image", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png", w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, storage.ImageCacheControl, w.Header().Get("Cache-Control"))

	w = do(r, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)

	exists, err := store.ImageExists(ctx, "stations/bluesy.png")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, path+"/image", nil).Code)
}

func TestGetImageWithoutArtwork(t *testing.T) {
	db := newTestDB(t)
	store := storage.NewWithProvider(storage.NewLocalProvider(t.TempDir()), "images", "/images")
	plain := seed(t, db, "plain", 50, true)
	foreign := seed(t, db, "foreign", 50, true)
	require.NoError(t, db.Model(foreign).Update("local_image_url", "https://cdn.example.com/x.png").Error)
	stale := seed(t, db, "stale", 50, true)
	require.NoError(t, db.Model(stale).Update("local_image_url", "/images/stations/gone.png").Error)

	h := NewStationHandler(db, newTestService(t, db), nil, store)
	r := gin.New()
	r.GET("/stations/:id/image", h.GetImage)
	r.DELETE("/stations/:id", h.DeleteStation)

	for _, st := range []*models.Station{plain, foreign, stale} {
		w := do(r, http.MethodGet, fmt.Sprintf("/stations/%d/image", st.ID), nil)
		assert.Equal(t, http.StatusNotFound, w.Code, st.Name)
	}

	// Missing files never block the delete
	assert.Equal(t, http.StatusOK, do(r, http.MethodDelete, fmt.Sprintf("/stations/%d", stale.ID), nil).Code)
}

func TestStatsTierBucketsMatchClassifier(t *testing.T) {
	db := newTestDB(t)
	bucket, err := tierCase()
	require.NoError(t, err)

	for _, score := range []float64{0, 59.99, 60, 69.99, 70, 79.99, 80, 89.99, 90, 100} {
		var got string
		require.NoError(t, db.Raw("SELECT "+bucket+" FROM (SELECT ? AS quality_score) s", score).Scan(&got).Error)
		assert.Equal(t, string(quality.ClassifyTier(score)), got, "score %v", score)
	}
}

func TestStatsDatabaseFailure(t *testing.T) {
	db := newTestDB(t)
	seed(t, db, "a", 92, true)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	r := gin.New()
	r.GET("/stats", NewStatsHandler(db).GetStats)

	w := do(r, http.MethodGet, "/stats", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "total_stations")
}

func TestCreateStation(t *testing.T) {
	db := newTestDB(t)
	h := NewStationHandler(db, newTestService(t, db), nil, nil)
	r := gin.New()
	r.POST("/stations", h.CreateStation)

	body := gin.H{
		"name":        "Smooth Nights",
		"stream_url":  "http://example.com/smooth",
		"tags":        "jazz,smooth jazz",
		"description": "Late night jazz for insomniacs and night owls everywhere",
		"bitrate":     128,
	}
	w := do(r, http.MethodPost, "/stations", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Station
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.PublicID)
	assert.NotEmpty(t, created.Genre)
	assert.NotEmpty(t, created.StationType)
	assert.Equal(t, 128, created.Bitrate)
	assert.Greater(t, created.QualityScore, 0.0)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/stations", gin.H{"name": "no stream"}).Code)
}

func TestCreateStationRollsBackOnFailedUpdate(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:fail_update", func(tx *gorm.DB) {
		_ = tx.AddError(fmt.Errorf("disk full"))
	}))

	h := NewStationHandler(db, newTestService(t, db), nil, nil)
	r := gin.New()
	r.POST("/stations", h.CreateStation)

	w := do(r, http.MethodPost, "/stations", gin.H{"name": "Half Written", "stream_url": "http://example.com/half"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var count int64
	require.NoError(t, db.Model(&models.Station{}).Unscoped().Count(&count).Error)
	assert.Zero(t, count)
}

func TestRegisterConcurrentSameUsername(t *testing.T) {
	db := newTestDB(t)
	h := NewAuthHandler(db, []byte("s"), 0)
	r := gin.New()
	r.POST("/auth/register", h.Register)

	const n = 4
	codes := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- do(r, http.MethodPost, "/auth/register", gin.H{"username": "twin", "password": "longenough"}).Code
		}()
	}
	wg.Wait()
	close(codes)

	got := map[int]int{}
	for code := range codes {
		got[code]++
	}
	assert.Equal(t, map[int]int{http.StatusCreated: 1, http.StatusConflict: n - 1}, got)
}

func TestRegisterConflictsWithDeletedUser(t *testing.T) {
	db := newTestDB(t)
	gone := models.Users{Username: "former", PasswordHash: "x", Role: models.RoleViewer}
	require.NoError(t, db.Create(&gone).Error)
	require.NoError(t, db.Delete(&gone).Error)

	r := gin.New()
	r.POST("/auth/register", NewAuthHandler(db, []byte("s"), 0).Register)

	w := do(r, http.MethodPost, "/auth/register", gin.H{"username": "former", "password": "longenough"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListStationsSearchIsLiteral(t *testing.T) {
	db := newTestDB(t)
	seed(t, db, "100% jazz", 60, true)
	seed(t, db, "1000 jazz", 60, true)
	seed(t, db, "rock_fm", 60, true)
	seed(t, db, "rockafm", 60, true)

	h := NewStationHandler(db, newTestService(t, db), nil, nil)
	r := gin.New()
	r.GET("/stations", h.ListStations)

	names := func(search string) []string {
		w := do(r, http.MethodGet, "/stations?search="+search, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data []models.Station `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		out := make([]string, 0, len(resp.Data))
		for _, st := range resp.Data {
			out = append(out, st.Name)
		}
		return out
	}

	assert.Equal(t, []string{"100% jazz"}, names("100%25"))
	assert.Equal(t, []string{"rock_fm"}, names("k_f"))
	assert.ElementsMatch(t, []string{"100% jazz", "1000 jazz"}, names("jazz"))
	assert.Empty(t, names(`%5C`))
}
