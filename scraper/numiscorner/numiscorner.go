package numiscorner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"coin-price-etl/config"
	"coin-price-etl/models"
	"coin-price-etl/utils"
)

const source = "numiscorner"

// Scraper extracts product cards from the configured collection pages using
// headless Chrome. It is the extraction adapter behind the pipeline: one
// Extract call returns whatever the site currently shows, or fails.
type Scraper struct {
	cfg    *config.Config
	logger *utils.Logger
	pool   *utils.WorkerPool
	retry  *utils.RetryConfig

	mu    sync.Mutex
	items []*models.RawItem
}

// New creates a ready-to-use collection Scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:    cfg,
		logger: logger,
		pool:   utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

// Extract scrapes every configured collection page. Cancellation of ctx
// tears the browser down, so a timed-out extraction leaves no Chrome
// processes behind.
func (s *Scraper) Extract(ctx context.Context) ([]*models.RawItem, error) {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()

	chromeBin := findChromeBinary(s.cfg.ChromeBin)
	s.logger.Info("[scraper] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	silentCtx, cancelSilent := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelSilent()
	allocCtx = silentCtx

	var pagesOK int
	for page := 1; page <= s.cfg.PagesToScrape; page++ {
		pageNum := page
		s.pool.Submit(func() {
			items, err := s.scrapePage(allocCtx, pageNum)
			if err != nil {
				s.logger.Error("[scraper] Page %d failed: %v", pageNum, err)
				return
			}
			s.mu.Lock()
			s.items = append(s.items, items...)
			pagesOK++
			s.mu.Unlock()
		})
	}
	s.pool.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scraper: extraction canceled: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Zero cards on an intact page is a valid (empty) result; every page
	// erroring out is an extraction failure.
	if pagesOK == 0 && s.cfg.PagesToScrape > 0 {
		return nil, fmt.Errorf("scraper: all %d pages failed", s.cfg.PagesToScrape)
	}

	s.logger.Info("[scraper] Extraction complete — %d raw items", len(s.items))
	out := make([]*models.RawItem, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *Scraper) scrapePage(allocCtx context.Context, pageNum int) ([]*models.RawItem, error) {
	pageURL := s.cfg.TargetURL
	if pageNum > 1 {
		pageURL = fmt.Sprintf("%s?page=%d", s.cfg.TargetURL, pageNum)
	}

	type cardData struct {
		Title string `json:"title"`
		Price string `json:"price"`
		Metal string `json:"metal"`
		Link  string `json:"link"`
		Image string `json:"image"`
	}

	items := make([]*models.RawItem, 0)

	err := s.retry.Do(fmt.Sprintf("scrape-page-%d", pageNum), func() error {
		ctx, cancel := chromedp.NewContext(allocCtx)
		defer cancel()

		ctx, cancelTimeout := context.WithTimeout(ctx, 60*time.Second)
		defer cancelTimeout()

		var cards []cardData

		err := chromedp.Run(ctx,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(3*time.Second),

			// Dismiss cookie-consent pop-ups if present.
			chromedp.Evaluate(`
				(function() {
					var labels = ['yes', 'accept', 'tout accepter'];
					var buttons = document.querySelectorAll('button, a[role="button"]');
					for (var i = 0; i < buttons.length; i++) {
						var text = (buttons[i].textContent || '').trim().toLowerCase();
						if (labels.indexOf(text) !== -1) {
							buttons[i].click();
						}
					}
					return true;
				})()
			`, nil),
			chromedp.Sleep(time.Second),

			// Extract product cards, skipping the promo slot.
			chromedp.Evaluate(`
				(function() {
					var results = [];
					var cards = document.querySelectorAll('div.product-item:not(#collectionProductPromo)');
					for (var i = 0; i < cards.length; i++) {
						var card = cards[i];
						var titleEl = card.querySelector('h3');
						var priceEl = card.querySelector('span.money');
						var metalEl = card.querySelector('div.legend-metal');
						var linkEl  = card.querySelector('a.icons-container') || card.querySelector('a');
						var imgEl   = card.querySelector('div.solo-image img') || card.querySelector('img');

						results.push({
							title: titleEl ? titleEl.textContent.trim() : '',
							price: priceEl ? priceEl.textContent.trim() : '',
							metal: metalEl ? metalEl.textContent.trim() : '',
							link:  linkEl && linkEl.href ? linkEl.href : '',
							image: imgEl && imgEl.src ? imgEl.src : ''
						});
					}
					return results;
				})()
			`, &cards),
		)
		if err != nil {
			return fmt.Errorf("chromedp page scrape: %w", err)
		}

		now := time.Now()
		items = items[:0]
		for _, c := range cards {
			items = append(items, &models.RawItem{
				Title:     c.Title,
				RawPrice:  c.Price,
				Metal:     c.Metal,
				Link:      c.Link,
				Image:     c.Image,
				Source:    source,
				ScrapedAt: now,
			})
		}

		s.logger.Debug("[scraper] Page %d — found %d cards", pageNum, len(items))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return items, nil
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
