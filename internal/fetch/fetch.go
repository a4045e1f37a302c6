package fetch

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	syncx "github.com/ije/gox/sync"
)

var clientPool = sync.Pool{
	New: func() any {
		return &Client{Client: &http.Client{}}
	},
}

var (
	textCache *ristretto.Cache
	textMutex syncx.KeyedMutex
)

func init() {
	textCache, _ = ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6, // number of keys to track frequency of (1M).
		MaxCost:     64 << 20,
		BufferItems: 64, // number of keys per Get buffer.
	})
}

// Client is a custom HTTP client for fetching remote module sources.
type Client struct {
	*http.Client
	userAgent string
}

// NewClient creates a new Client.
func NewClient(userAgent string, timeout int) (client *Client, recycle func()) {
	client = clientPool.Get().(*Client)
	client.userAgent = userAgent
	client.Timeout = time.Duration(timeout) * time.Second
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return errors.New("stopped after 5 redirects")
		}
		return nil
	}
	return client, func() { clientPool.Put(client) }
}

// Fetch sends a GET request and returns the response.
func (c *Client) Fetch(url *url.URL, header http.Header) (resp *http.Response, err error) {
	if c.userAgent != "" {
		if header == nil {
			header = make(http.Header)
		}
		header.Set("User-Agent", c.userAgent)
	}
	req := &http.Request{
		Method:     "GET",
		URL:        url,
		Host:       url.Host,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     header,
	}
	return c.Do(req)
}

// Text fetches the given URL as UTF-8 text. Responses are kept in a memory
// cache for a short while, and concurrent fetches of one URL are collapsed
// into a single request.
func (c *Client) Text(u *url.URL) (text string, err error) {
	key := u.String()
	if v, ok := textCache.Get(key); ok {
		return v.(string), nil
	}

	unlock := textMutex.Lock(key)
	defer unlock()

	// check cache again after lock
	if v, ok := textCache.Get(key); ok {
		return v.(string), nil
	}

	resp, err := c.Fetch(u, nil)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		err = fmt.Errorf("GET %s: %s", key, resp.Status)
		return
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return
	}
	text = string(data)
	textCache.SetWithTTL(key, text, int64(len(text)), 5*time.Minute)
	return
}
