// Package caldav is a minimal CalDAV client covering the four requests
// this tool needs: PROPFIND to list collections, calendar-query REPORT to
// read events, PUT to append, DELETE to remove. It is not a general
// protocol client; the configured URL must point at the account's
// calendar home (e.g. https://caldav.fastmail.com/dav/calendars/user/...).
package caldav

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	appLog "github.com/illixion/CalendarTransformer/internal/log"
)

// ErrNotFound is returned by Lookup for a collection name the server
// does not expose.
var ErrNotFound = errors.New("caldav: collection not found")

const requestTimeout = 30 * time.Second

// Client talks to one CalDAV account over HTTP basic auth.
type Client struct {
	base     *url.URL
	username string
	password string
	http     *http.Client

	mu   sync.Mutex
	cols map[string]*Collection // populated on first Lookup
}

// NewClient builds a client for the calendar home at rawURL.
func NewClient(rawURL, username, password string) (*Client, error) {
	if rawURL == "" {
		return nil, errors.New("caldav: url is empty")
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("caldav: parse url: %w", err)
	}
	return &Client{
		base:     base,
		username: username,
		password: password,
		http:     &http.Client{Timeout: requestTimeout},
	}, nil
}

// Lookup resolves a collection by display name. The collection list is
// fetched once per client; clients are constructed per run.
func (c *Client) Lookup(ctx context.Context, name string) (*Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cols == nil {
		cols, err := c.listCollections(ctx)
		if err != nil {
			return nil, err
		}
		c.cols = cols
	}
	col, ok := c.cols[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return col, nil
}

const propfindBody = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:">
  <d:prop>
    <d:displayname/>
    <d:resourcetype/>
  </d:prop>
</d:propfind>`

func (c *Client) listCollections(ctx context.Context) (map[string]*Collection, error) {
	req, err := c.newRequest(ctx, "PROPFIND", c.base.Path, propfindBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Depth", "1")

	ms, err := c.doMultistatus(req)
	if err != nil {
		return nil, fmt.Errorf("caldav: list collections: %w", err)
	}

	cols := make(map[string]*Collection)
	for _, resp := range ms.Responses {
		for _, ps := range resp.Propstats {
			if !strings.Contains(ps.Status, "200") {
				continue
			}
			if ps.Prop.ResourceType.Calendar == nil || ps.Prop.DisplayName == "" {
				continue
			}
			cols[ps.Prop.DisplayName] = &Collection{
				client: c,
				name:   ps.Prop.DisplayName,
				href:   resp.Href,
			}
		}
	}
	appLog.Info("caldav collections listed", "host", c.base.Host, "count", len(cols))
	return cols, nil
}

func (c *Client) newRequest(ctx context.Context, method, path, body string) (*http.Request, error) {
	u := *c.base
	u.Path = path
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	if body != "" {
		req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	}
	return req, nil
}

func (c *Client) doMultistatus(req *http.Request) (*multistatus, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMultiStatus {
		return nil, errors.New(resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var ms multistatus
	if err := xml.Unmarshal(data, &ms); err != nil {
		return nil, err
	}
	return &ms, nil
}

// WebDAV multistatus response shapes. Tags without a namespace match the
// DAV: and caldav namespaces by local name.
type multistatus struct {
	XMLName   xml.Name   `xml:"multistatus"`
	Responses []response `xml:"response"`
}

type response struct {
	Href      string     `xml:"href"`
	Propstats []propstat `xml:"propstat"`
}

type propstat struct {
	Status string `xml:"status"`
	Prop   prop   `xml:"prop"`
}

type prop struct {
	DisplayName  string       `xml:"displayname"`
	ResourceType resourcetype `xml:"resourcetype"`
	CalendarData string       `xml:"calendar-data"`
}

type resourcetype struct {
	Calendar *struct{} `xml:"calendar"`
}

// redactURL hides the path and query of a server URL for logging.
func redactURL(u *url.URL) string {
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
