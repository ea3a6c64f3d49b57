package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupCachesResult(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/8.8.8.8", r.URL.Path)
		w.Write([]byte(`{"status":"success","country":"United States","countryCode":"us","city":"Ashburn","lat":39.03,"lon":-77.5}`))
	}))
	defer srv.Close()

	l := New(Config{Endpoint: srv.URL, Timeout: time.Second})

	loc, err := l.Lookup(context.Background(), "8.8.8.8")
	require.NoError(t, err)
	assert.Equal(t, "US", loc.CountryCode)
	assert.Equal(t, "Ashburn", loc.City)

	assert.Equal(t, "US", l.CountryCode(context.Background(), "8.8.8.8"))
	assert.Equal(t, int32(1), hits.Load())
}

func TestLookupSkipsPrivateAddresses(t *testing.T) {
	l := New(Config{Endpoint: "http://127.0.0.1:1"})

	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "192.168.0.10", "::1", "not-an-ip", ""} {
		_, err := l.Lookup(context.Background(), ip)
		assert.ErrorIs(t, err, ErrPrivateAddress, ip)
		assert.Empty(t, l.CountryCode(context.Background(), ip))
	}
}

func TestLookupFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"fail","message":"reserved range"}`))
	}))
	defer srv.Close()

	l := New(Config{Endpoint: srv.URL})
	_, err := l.Lookup(context.Background(), "1.1.1.1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountryFromArea(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "Melbourne", r.URL.Query().Get("q"))
		if r.URL.Query().Get("q") == "Melbourne" {
			w.Write([]byte(`[{"address":{"country_code":"au"}}]`))
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	l := New(Config{NominatimURL: srv.URL})

	code, err := l.CountryFromArea(context.Background(), "Melbourne")
	require.NoError(t, err)
	assert.Equal(t, "AU", code)

	code, err = l.CountryFromArea(context.Background(), " melbourne ")
	require.NoError(t, err)
	assert.Equal(t, "AU", code)
	assert.Equal(t, int32(1), hits.Load())
}
