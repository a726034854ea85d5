package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	valkeylib "github.com/valkey-io/valkey-go"
)

const DefaultConnectTimeout = 5 * time.Second

// Config selects the Valkey server backing the cache and conversation store.
type Config struct {
	Address        string
	Password       string
	DB             int
	KeyPrefix      string        // namespace shared by every key this process writes
	ConnectTimeout time.Duration // zero means DefaultConnectTimeout
}

// Client owns the connection and the key namespace. Store is the only
// consumer; it never sees raw keys.
type Client struct {
	conn   valkeylib.Client
	prefix string
}

// NewClient dials and pings the server so a bad address fails at startup
// rather than on the first cache lookup.
func NewClient(cfg Config) (*Client, error) {
	conn, err := valkeylib.NewClient(valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("valkey %s: %w", cfg.Address, err)
	}
	c := &Client{conn: conn, prefix: normalizePrefix(cfg.KeyPrefix)}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("valkey %s unreachable after %v: %w", cfg.Address, timeout, err)
	}

	logrus.WithFields(logrus.Fields{
		"address": cfg.Address,
		"db":      cfg.DB,
		"prefix":  c.prefix,
	}).Info("[VALKEY] connected")
	return c, nil
}

func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.conn.Do(ctx, c.conn.B().Ping().Build()).Error()
}

// key maps a logical store key (or SCAN pattern) into the namespace.
func (c *Client) key(logical string) string {
	return c.prefix + logical
}

// logical strips the namespace from a key returned by the server.
func (c *Client) logical(raw string) string {
	return strings.TrimPrefix(raw, c.prefix)
}

// normalizePrefix ends a non-empty prefix with exactly one colon.
func normalizePrefix(p string) string {
	p = strings.TrimRight(p, ":")
	if p == "" {
		return ""
	}
	return p + ":"
}
