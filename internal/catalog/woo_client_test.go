package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWooServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	return newWooServerWithDecimals(t, hits, "2")
}

// newWooServerWithDecimals serves the price decimals setting as decimals, or
// 404 when decimals is empty.
func newWooServerWithDecimals(t *testing.T, hits *atomic.Int32, decimals string) *httptest.Server {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			user, pass, ok := r.BasicAuth()
			if !ok || user != "ck" || pass != "cs" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/wp-json/wc/v3/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch chi.URLParam(r, "id") {
		case "10":
			json.NewEncoder(w).Encode(WooProduct{ID: 10, Name: "Étui", Type: "simple", Price: "25.00"})
		case "20":
			json.NewEncoder(w).Encode(WooProduct{ID: 20, Name: "Atlas", Type: "variable", Price: "129.00", Variations: []int64{21, 22}})
		case "30":
			json.NewEncoder(w).Encode(WooProduct{ID: 30, Name: "Riviera", Type: "simple", Price: "145.900"})
		case "500":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	r.Get("/wp-json/wc/v3/products/{id}/variations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		json.NewEncoder(w).Encode([]WooVariation{
			{ID: 21, Price: "159,00"},
			{ID: 22},
		})
	})

	r.Get("/wp-json/wc/v3/settings/general/woocommerce_price_num_decimals", func(w http.ResponseWriter, r *http.Request) {
		if decimals == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "woocommerce_price_num_decimals", "value": decimals})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestWooClient_SimpleProduct(t *testing.T) {
	var hits atomic.Int32
	srv := newWooServer(t, &hits)
	client := NewWooClient(WooConfig{BaseURL: srv.URL + "/", ConsumerKey: "ck", ConsumerSecret: "cs"}, nil)

	item, err := client.Product(context.Background(), "10")
	require.NoError(t, err)
	assert.Equal(t, "10", item.Product.ID())
	assert.Equal(t, int64(2500), item.Product.Price())
	assert.Empty(t, item.Variants)
	assert.Equal(t, int32(2), hits.Load(), "product and decimals setting")

	_, err = client.Product(context.Background(), "10")
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load(), "decimals setting is remembered")
}

func TestWooClient_ThreeDecimalStore(t *testing.T) {
	var hits atomic.Int32
	srv := newWooServerWithDecimals(t, &hits, "3")
	client := NewWooClient(WooConfig{BaseURL: srv.URL, ConsumerKey: "ck", ConsumerSecret: "cs"}, nil)

	item, err := client.Product(context.Background(), "30")
	require.NoError(t, err)
	assert.Equal(t, int64(14590), item.Product.Price())
}

func TestWooClient_DecimalsFromConfig(t *testing.T) {
	var hits atomic.Int32
	srv := newWooServerWithDecimals(t, &hits, "")
	client := NewWooClient(WooConfig{BaseURL: srv.URL, ConsumerKey: "ck", ConsumerSecret: "cs", PriceDecimals: 3}, nil)

	item, err := client.Product(context.Background(), "30")
	require.NoError(t, err)
	assert.Equal(t, int64(14590), item.Product.Price())
	assert.Equal(t, int32(1), hits.Load(), "setting is not read when configured")
}

func TestWooClient_DecimalsSettingUnavailable(t *testing.T) {
	var hits atomic.Int32
	srv := newWooServerWithDecimals(t, &hits, "")
	client := NewWooClient(WooConfig{BaseURL: srv.URL, ConsumerKey: "ck", ConsumerSecret: "cs"}, nil)

	item, err := client.Product(context.Background(), "10")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), item.Product.Price())
}

func TestWooClient_VariableProduct(t *testing.T) {
	var hits atomic.Int32
	srv := newWooServer(t, &hits)
	client := NewWooClient(WooConfig{BaseURL: srv.URL, ConsumerKey: "ck", ConsumerSecret: "cs"}, nil)

	item, err := client.Product(context.Background(), "20")
	require.NoError(t, err)
	require.Len(t, item.Variants, 2)

	v, err := item.Variant("21")
	require.NoError(t, err)
	price, ok := v.Price()
	assert.True(t, ok)
	assert.Equal(t, int64(15900), price)
}

func TestWooClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := newWooServer(t, &hits)
	client := NewWooClient(WooConfig{BaseURL: srv.URL, ConsumerKey: "ck", ConsumerSecret: "cs"}, nil)

	for i := 0; i < 10; i++ {
		_, err := client.Product(context.Background(), "404")
		assert.ErrorIs(t, err, ErrProductNotFound)
	}
	assert.Equal(t, int32(10), hits.Load())
}

func TestWooClient_ServerErrorsOpenBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := newWooServer(t, &hits)
	client := NewWooClient(WooConfig{BaseURL: srv.URL, ConsumerKey: "ck", ConsumerSecret: "cs"}, nil)

	for i := 0; i < 5; i++ {
		_, err := client.Product(context.Background(), "500")
		assert.ErrorIs(t, err, ErrCatalogUnavailable)
	}
	require.Equal(t, int32(5), hits.Load())

	// breaker is open: the backend is not called any more
	_, err := client.Product(context.Background(), "10")
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.Equal(t, int32(5), hits.Load())
}

func TestWooClient_BadCredentials(t *testing.T) {
	var hits atomic.Int32
	srv := newWooServer(t, &hits)
	client := NewWooClient(WooConfig{BaseURL: srv.URL, ConsumerKey: "ck", ConsumerSecret: "wrong"}, nil)

	_, err := client.Product(context.Background(), "10")
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}
