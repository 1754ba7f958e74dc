// Package fetcher looks up previous transactions from a block explorer.
//
// Lookups go through two cache levels before touching the network:
//
//  1. an in-process cache of parsed transactions (ttlcache)
//  2. a persistent store of raw transaction bytes (leveldb)
//  3. GET {base}/tx/{id}/hex, retried on network errors and 5xx
//
// Downloaded transactions are checked against the requested id before they
// are cached.
package fetcher

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/tinyblock/tinyblock/pkg/tx"
	"github.com/tinyblock/tinyblock/pkg/wire"
)

// Default explorer endpoints.
const (
	DefaultMainnetURL = "https://blockstream.info/api"
	DefaultTestnetURL = "https://blockstream.info/testnet/api"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultRetries   = 3
	defaultBackoff   = 500 * time.Millisecond
	defaultMemoryTTL = 10 * time.Minute
	memoryCapacity   = 10_000

	// maxBodySize bounds the explorer response: a 4 MB transaction as hex
	// plus a trailing newline.
	maxBodySize = 8<<20 + 1
)

// ErrIDMismatch is returned when the explorer serves a transaction whose id
// differs from the one requested.
var ErrIDMismatch = errors.New("fetched transaction id does not match request")

// Client fetches and caches previous transactions. It is safe for
// concurrent use. Returned transactions are shared with the cache and must
// not be modified.
type Client struct {
	httpClient *http.Client
	mainnetURL string
	testnetURL string
	retries    int
	backoff    time.Duration
	memoryTTL  time.Duration
	store      Store
	cache      *ttlcache.Cache[string, *tx.Tx]
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

// WithURLs sets the explorer base URLs.
func WithURLs(mainnet, testnet string) Option {
	return func(c *Client) {
		c.mainnetURL = strings.TrimRight(mainnet, "/")
		c.testnetURL = strings.TrimRight(testnet, "/")
	}
}

// WithRetries sets how many times a transient failure is retried and the
// linear backoff step between attempts.
func WithRetries(retries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = retries
		c.backoff = backoff
	}
}

// WithMemoryTTL sets how long parsed transactions stay in memory.
func WithMemoryTTL(d time.Duration) Option {
	return func(c *Client) { c.memoryTTL = d }
}

// WithStore sets the persistent raw-transaction store.
func WithStore(s Store) Option {
	return func(c *Client) { c.store = s }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a Client. Without WithStore the persistent level is an
// in-memory leveldb.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		mainnetURL: DefaultMainnetURL,
		testnetURL: DefaultTestnetURL,
		retries:    defaultRetries,
		backoff:    defaultBackoff,
		memoryTTL:  defaultMemoryTTL,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retries < 0 {
		return nil, errors.Errorf("retries must not be negative, got %d", c.retries)
	}

	if c.store == nil {
		s, err := OpenMemLevelDB()
		if err != nil {
			return nil, err
		}
		c.store = s
	}

	c.cache = ttlcache.New[string, *tx.Tx](
		ttlcache.WithTTL[string, *tx.Tx](c.memoryTTL),
		ttlcache.WithCapacity[string, *tx.Tx](memoryCapacity),
	)
	go c.cache.Start()

	return c, nil
}

// Close stops cache eviction and closes the store.
func (c *Client) Close() error {
	c.cache.Stop()
	return c.store.Close()
}

func cacheKey(txID string, testnet bool) string {
	if testnet {
		return "test:" + txID
	}
	return "main:" + txID
}

func (c *Client) baseURL(testnet bool) string {
	if testnet {
		return c.testnetURL
	}
	return c.mainnetURL
}

// Fetch returns the transaction with display-hex id txID.
func (c *Client) Fetch(ctx context.Context, txID string, testnet bool) (*tx.Tx, error) {
	txID = strings.ToLower(txID)
	if _, err := tx.ParseTxID(txID); err != nil {
		return nil, errors.Wrap(err, "invalid transaction id")
	}

	key := cacheKey(txID, testnet)
	log := c.logger.With().Str("txid", txID).Bool("testnet", testnet).Logger()

	if item := c.cache.Get(key); item != nil {
		log.Debug().Msg("memory cache hit")
		return item.Value(), nil
	}

	raw, err := c.store.Get(key)
	if err != nil {
		log.Warn().Err(err).Msg("store read failed")
	}
	if raw != nil {
		t, err := decode(raw, txID, testnet)
		if err == nil {
			log.Debug().Msg("store hit")
			c.cache.Set(key, t, ttlcache.DefaultTTL)
			return t, nil
		}
		log.Warn().Err(err).Msg("discarding stored transaction")
	}

	log.Debug().Msg("cache miss, downloading")
	raw, err = retry(ctx, log, c.retries, c.backoff, func() ([]byte, error) {
		return c.download(ctx, txID, testnet)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "downloading %s", txID)
	}

	t, err := decode(raw, txID, testnet)
	if err != nil {
		return nil, err
	}

	if err := c.store.Put(key, raw); err != nil {
		log.Warn().Err(err).Msg("store write failed")
	}
	c.cache.Set(key, t, ttlcache.DefaultTTL)

	return t, nil
}

// download performs one GET. Network errors and 5xx responses are
// transient; every other failure is permanent.
func (c *Client) download(ctx context.Context, txID string, testnet bool) ([]byte, error) {
	url := fmt.Sprintf("%s/tx/%s/hex", c.baseURL(testnet), txID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, permanent(errors.Wrap(err, "building request"))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrapf(err, "reading response from %s", url)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, errors.Errorf("GET %s: %s", url, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, permanent(errors.Errorf("GET %s: %s: %s", url, resp.Status, bytes.TrimSpace(body)))
	}

	raw, err := hex.DecodeString(string(bytes.TrimSpace(body)))
	if err != nil {
		return nil, permanent(&wire.FormatError{Code: wire.ErrBadTag, Message: "response is not valid hex", Cause: err})
	}
	return raw, nil
}

// decode parses raw and checks that it hashes to txID.
func decode(raw []byte, txID string, testnet bool) (*tx.Tx, error) {
	if len(raw) > 5 && raw[4] == 0x00 && raw[5] == 0x01 {
		return nil, wire.NewFormatError(wire.ErrUnsupported, "segwit transaction %s", txID)
	}

	t, err := tx.ParseBytes(raw, testnet)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", txID)
	}

	id, err := t.ID()
	if err != nil {
		return nil, err
	}
	if id != txID {
		return nil, errors.Wrapf(ErrIDMismatch, "requested %s, got %s", txID, id)
	}
	return t, nil
}
