package nowplaying

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestIcecastSingleSource(t *testing.T) {
	srv, hits := serve(t, `{"icestats":{"source":{"title":"Miles Davis - So What","listeners":12,"listenurl":"http://x/live"}}}`)
	c := New(Config{})

	tr, err := c.Current(context.Background(), srv.URL, "Icecast")
	require.NoError(t, err)
	assert.Equal(t, "Miles Davis", tr.Artist)
	assert.Equal(t, "So What", tr.Title)
	assert.Equal(t, 12, tr.Listeners)

	_, err = c.Current(context.Background(), srv.URL, TypeIcecast)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestIcecastPicksMount(t *testing.T) {
	srv, _ := serve(t, `{"icestats":{"source":[
		{"title":"A - One","listenurl":"http://x/low"},
		{"artist":"B","title":"Two","listenurl":"http://x/high"}
	]}}`)

	tr, err := New(Config{}).Current(context.Background(), srv.URL+"/status-json.xsl?mount=/high", TypeIcecast)
	require.NoError(t, err)
	assert.Equal(t, "B", tr.Artist)
	assert.Equal(t, "Two", tr.Title)
}

func TestIcecastNoSource(t *testing.T) {
	srv, _ := serve(t, `{"icestats":{"admin":"x"}}`)
	_, err := New(Config{}).Current(context.Background(), srv.URL, TypeIcecast)
	assert.ErrorIs(t, err, ErrNothingPlaying)
}

func TestAzuracast(t *testing.T) {
	srv, _ := serve(t, `{"now_playing":{"song":{"artist":"Nina Simone","title":"Sinnerman","album":"Pastel Blues","art":"http://art/1.jpg"}},"listeners":{"current":40}}`)

	tr, err := New(Config{}).Current(context.Background(), srv.URL, TypeAzuracast)
	require.NoError(t, err)
	assert.Equal(t, Track{
		Artist:    "Nina Simone",
		Title:     "Sinnerman",
		Album:     "Pastel Blues",
		Artwork:   "http://art/1.jpg",
		Listeners: 40,
		FetchedAt: tr.FetchedAt,
	}, tr)
}

func TestShoutcastWithArtworkLookup(t *testing.T) {
	itunes, _ := serve(t, `{"resultCount":1,"results":[{"artworkUrl100":"http://img/100x100bb.jpg"}]}`)
	srv, _ := serve(t, `{"songtitle":"Daft Punk - Around the World","currentlisteners":7}`)

	tr, err := New(Config{ITunesURL: itunes.URL}).Current(context.Background(), srv.URL, TypeShoutcast)
	require.NoError(t, err)
	assert.Equal(t, "Daft Punk", tr.Artist)
	assert.Equal(t, "Around the World", tr.Title)
	assert.Equal(t, "http://img/600x600bb.jpg", tr.Artwork)
}

func TestCurrentErrors(t *testing.T) {
	c := New(Config{})
	_, err := c.Current(context.Background(), "", TypeIcecast)
	assert.ErrorIs(t, err, ErrNotConfigured)

	srv, _ := serve(t, `{}`)
	_, err = c.Current(context.Background(), srv.URL, "radiodj")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestSplitSongTitle(t *testing.T) {
	a, ti := splitSongTitle("  Station ident ")
	assert.Empty(t, a)
	assert.Equal(t, "Station ident", ti)
}
