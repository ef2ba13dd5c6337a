package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"
)

const defaultDialTimeout = 5 * time.Second

// Options describes how to reach the Valkey server shared by all CRM instances.
type Options struct {
	Address     string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

// Client holds ephemeral cross-instance state: webhook dedup markers and typing indicators.
type Client struct {
	inner  valkeylib.Client
	prefix string
}

// Connect opens the client and pings the server once.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	inner, err := valkeylib.NewClient(valkeylib.ClientOption{
		InitAddress: []string{opts.Address},
		Password:    opts.Password,
		SelectDB:    opts.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("valkey %s: %w", opts.Address, err)
	}

	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := inner.Do(pingCtx, inner.B().Ping().Build()).Error(); err != nil {
		inner.Close()
		return nil, fmt.Errorf("valkey %s unreachable: %w", opts.Address, err)
	}

	return &Client{inner: inner, prefix: strings.TrimSuffix(opts.KeyPrefix, ":")}, nil
}

func (c *Client) Close() {
	c.inner.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.inner.Do(ctx, c.inner.B().Ping().Build()).Error()
}

// Key joins parts under the configured prefix: Key("seen", "msg:1") -> "azcrm:seen:msg:1".
func (c *Client) Key(parts ...string) string {
	if c.prefix == "" {
		return strings.Join(parts, ":")
	}
	return c.prefix + ":" + strings.Join(parts, ":")
}

// SetNX stores value only when key is absent. It reports whether the write happened.
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	cmd := c.inner.B().Set().Key(key).Value(value).Nx().Ex(ttl).Build()
	err := c.inner.Do(ctx, cmd).Error()
	switch {
	case err == nil:
		return true, nil
	case valkeylib.IsValkeyNil(err):
		return false, nil
	default:
		return false, err
	}
}

func (c *Client) SetEX(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.inner.Do(ctx, c.inner.B().Set().Key(key).Value(value).Ex(ttl).Build()).Error()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.inner.Do(ctx, c.inner.B().Del().Key(keys...).Build()).Error()
}

// ScanValues returns the values of every key matching pattern. Keys that expire
// between SCAN and MGET are skipped.
func (c *Client) ScanValues(ctx context.Context, pattern string) ([]string, error) {
	var out []string
	var cursor uint64
	for {
		entry, err := c.inner.Do(ctx, c.inner.B().Scan().Cursor(cursor).Match(pattern).Count(100).Build()).AsScanEntry()
		if err != nil {
			return nil, err
		}
		if len(entry.Elements) > 0 {
			values, err := c.inner.Do(ctx, c.inner.B().Mget().Key(entry.Elements...).Build()).ToArray()
			if err != nil {
				return nil, err
			}
			for _, v := range values {
				s, err := v.ToString()
				if err != nil || s == "" {
					continue
				}
				out = append(out, s)
			}
		}
		cursor = entry.Cursor
		if cursor == 0 {
			return out, nil
		}
	}
}
