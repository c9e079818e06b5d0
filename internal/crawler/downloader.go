package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IliaW/jamaah-scrape-worker/config"
	"github.com/gocolly/colly"
)

var ErrEmptyBody = errors.New("empty response body")

// Downloader fetches raw documents, such as timetable PDFs, without a browser.
type Downloader struct {
	cfg *config.DownloadConfig
	log *slog.Logger
}

func NewDownloader(cfg *config.DownloadConfig, log *slog.Logger) *Downloader {
	return &Downloader{cfg: cfg, log: log}
}

func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := colly.NewCollector(colly.AllowURLRevisit())
	c.SetRequestTimeout(d.cfg.Timeout)
	c.UserAgent = d.cfg.UserAgent
	c.MaxBodySize = d.cfg.MaxBodySize

	var body []byte
	var fetchErr error
	c.OnResponse(func(resp *colly.Response) {
		body = resp.Body
	})
	c.OnError(func(resp *colly.Response, err error) {
		fetchErr = fmt.Errorf("status %d: %w", resp.StatusCode, err)
	})

	t := time.Now()
	err := c.Visit(url)
	d.log.Debug("document downloaded.", slog.String("url", url),
		slog.Int64("ms", time.Since(t).Milliseconds()), slog.Int("bytes", len(body)))
	if fetchErr != nil {
		return nil, fetchErr
	}
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}

	return body, nil
}
