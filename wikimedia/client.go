// Package wikimedia looks up freely licensed images on Wikimedia Commons.
package wikimedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mahatour/apperr"
	"mahatour/models"
)

// ErrNoImage means the provider answered but had nothing usable.
var ErrNoImage = errors.New("wikimedia: no image found")

// fileNamespace restricts searches to File: pages.
const fileNamespace = 6

type Client struct {
	BaseURL    string
	UserAgent  string
	ThumbWidth int
	HTTP       *http.Client
}

func NewClient(baseURL, userAgent string, thumbWidth int) *Client {
	return &Client{
		BaseURL:    baseURL,
		UserAgent:  userAgent,
		ThumbWidth: thumbWidth,
		HTTP:       &http.Client{Timeout: 15 * time.Second},
	}
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type metaValue struct {
	Value string `json:"value"`
}

type imageInfoResponse struct {
	Query struct {
		Pages []struct {
			Title     string `json:"title"`
			Missing   bool   `json:"missing"`
			ImageInfo []struct {
				URL            string               `json:"url"`
				ThumbURL       string               `json:"thumburl"`
				DescriptionURL string               `json:"descriptionurl"`
				ExtMetadata    map[string]metaValue `json:"extmetadata"`
			} `json:"imageinfo"`
		} `json:"pages"`
	} `json:"query"`
}

// Lookup searches Commons for term and returns the details of the top hit.
// Every failure, including an empty result, is an EnrichmentLookup error.
func (c *Client) Lookup(ctx context.Context, term string) (*models.ImageMatch, error) {
	title, err := c.search(ctx, term)
	if err != nil {
		return nil, apperr.Lookup("wikimedia.search", err)
	}
	match, err := c.imageInfo(ctx, title)
	if err != nil {
		return nil, apperr.Lookup("wikimedia.imageinfo", err)
	}
	return match, nil
}

func (c *Client) search(ctx context.Context, term string) (string, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("format", "json")
	q.Set("formatversion", "2")
	q.Set("list", "search")
	q.Set("srsearch", term)
	q.Set("srnamespace", strconv.Itoa(fileNamespace))
	q.Set("srlimit", "1")

	var resp searchResponse
	if err := c.get(ctx, q, &resp); err != nil {
		return "", err
	}
	if len(resp.Query.Search) == 0 || resp.Query.Search[0].Title == "" {
		return "", ErrNoImage
	}
	return resp.Query.Search[0].Title, nil
}

func (c *Client) imageInfo(ctx context.Context, title string) (*models.ImageMatch, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("format", "json")
	q.Set("formatversion", "2")
	q.Set("titles", title)
	q.Set("prop", "imageinfo")
	q.Set("iiprop", "url|extmetadata")
	if c.ThumbWidth > 0 {
		q.Set("iiurlwidth", strconv.Itoa(c.ThumbWidth))
	}

	var resp imageInfoResponse
	if err := c.get(ctx, q, &resp); err != nil {
		return nil, err
	}
	if len(resp.Query.Pages) == 0 {
		return nil, ErrNoImage
	}
	page := resp.Query.Pages[0]
	if page.Missing || len(page.ImageInfo) == 0 {
		return nil, ErrNoImage
	}

	info := page.ImageInfo[0]
	thumb := info.ThumbURL
	if thumb == "" {
		thumb = info.URL
	}
	meta := info.ExtMetadata
	m := &models.ImageMatch{
		ImageURL: info.URL,
		Wikimedia: models.WikimediaInfo{
			ThumbnailURL:    thumb,
			DescriptionHTML: meta["ImageDescription"].Value,
			Artist:          stripTags(meta["Artist"].Value),
			AttributionURL:  info.DescriptionURL,
			License:         meta["LicenseShortName"].Value,
			LicenseURL:      meta["LicenseUrl"].Value,
		},
	}
	if !m.Wikimedia.Complete() {
		return nil, ErrNoImage
	}
	return m, nil
}

func (c *Client) get(ctx context.Context, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("commons returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// stripTags turns the Artist HTML snippet into a plain name.
func stripTags(s string) string {
	return strings.Join(strings.Fields(tagRe.ReplaceAllString(s, " ")), " ")
}
