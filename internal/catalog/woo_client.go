package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fjod/storefront-cart/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type WooConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Timeout        time.Duration
	// PriceDecimals overrides the store's "Number of decimals" setting when
	// positive. Otherwise the setting is read from the store once.
	PriceDecimals int
}

// WooClient reads products from the WooCommerce REST API.
type WooClient struct {
	cfg     WooConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[Item]
	log     *zap.Logger

	decimalsMu sync.Mutex
	decimals   *int
}

func NewWooClient(cfg WooConfig, log *zap.Logger) *WooClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	opts := circuitbreaker.DefaultOptions()
	opts.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrProductNotFound)
	}

	return &WooClient{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New[Item]("woocommerce", opts, log),
		log:     log,
	}
}

func (c *WooClient) Product(ctx context.Context, id string) (Item, error) {
	item, err := c.breaker.Execute(func() (Item, error) {
		return c.fetch(ctx, id)
	})
	if circuitbreaker.IsRejected(err) {
		return Item{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return item, err
}

func (c *WooClient) fetch(ctx context.Context, id string) (Item, error) {
	var p WooProduct
	if err := c.get(ctx, "/products/"+url.PathEscape(id), nil, &p); err != nil {
		return Item{}, err
	}

	var variations []WooVariation
	if p.Type == "variable" || len(p.Variations) > 0 {
		q := url.Values{"per_page": {"100"}}
		if err := c.get(ctx, "/products/"+url.PathEscape(id)+"/variations", q, &variations); err != nil {
			return Item{}, err
		}
	}

	item, err := AdaptWoo(p, variations, c.priceDecimals(ctx))
	if err != nil {
		c.log.Warn("unusable woocommerce product", zap.String("product_id", id), zap.Error(err))
		return Item{}, ErrProductNotFound
	}
	return item, nil
}

type wooSetting struct {
	Value string `json:"value"`
}

// priceDecimals returns the store's number of price decimals. Only a
// successful read is remembered; failures fall back to the WooCommerce default.
func (c *WooClient) priceDecimals(ctx context.Context) int {
	if c.cfg.PriceDecimals > 0 {
		return c.cfg.PriceDecimals
	}

	c.decimalsMu.Lock()
	defer c.decimalsMu.Unlock()
	if c.decimals != nil {
		return *c.decimals
	}

	var setting wooSetting
	if err := c.get(ctx, "/settings/general/woocommerce_price_num_decimals", nil, &setting); err != nil {
		c.log.Warn("could not read woocommerce price decimals, using default", zap.Error(err))
		return DefaultPriceDecimals
	}
	n, err := strconv.Atoi(strings.TrimSpace(setting.Value))
	if err != nil || n < 0 {
		c.log.Warn("invalid woocommerce price decimals, using default", zap.String("value", setting.Value))
		return DefaultPriceDecimals
	}
	c.decimals = &n
	return n
}

func (c *WooClient) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.cfg.BaseURL + "/wp-json/wc/v3" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build woocommerce request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrProductNotFound
	case resp.StatusCode >= 300:
		return fmt.Errorf("%w: woocommerce returned %d", ErrCatalogUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode woocommerce response: %w", err)
	}
	return nil
}
