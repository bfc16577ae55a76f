// Package extractor defines the contract every site extractor implements and
// the static registry the dispatcher routes through.
package extractor

import (
	"context"

	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/scheduler"
)

// Extractor scrapes one site. Instances are created per task by a Factory.
type Extractor interface {
	Metadata() models.ActorInfo
	Scrape(ctx context.Context, input Input, progress models.ProgressFunc) ([]models.Record, error)
}

// Factory builds an extractor bound to one task's resources. It must not
// allocate anything itself; it is also called with zero Deps to read metadata.
type Factory func(Deps) Extractor

// Browser renders pages for an extractor. *browser.Pages implements it.
type Browser interface {
	Render(ctx context.Context, url string, opts browser.RenderOptions) (*browser.Rendered, error)
}

// BrowserFunc opens a renderer with the given context options. The dispatcher
// binds it to the task's session, which owns and tears down everything it opens.
type BrowserFunc func(opts browser.ContextOptions) Browser

// ContactFinder looks up contact details on a business website.
type ContactFinder interface {
	Enrich(ctx context.Context, website string) (*models.Contacts, error)
}

// Emitter streams per-record updates for a run.
type Emitter interface {
	EmitRecord(correlationID string, record models.Record)
}

// Deps are the per-task collaborators handed to a Factory.
type Deps struct {
	Browser       BrowserFunc
	Scheduler     *scheduler.Scheduler
	Contacts      ContactFinder
	Status        Emitter
	CorrelationID string
}

// OpenBrowser returns a renderer, or a failing one when no browser is wired.
func (d Deps) OpenBrowser(opts browser.ContextOptions) Browser {
	if d.Browser == nil {
		return noBrowser{}
	}
	return d.Browser(opts)
}

// Sched returns the scheduler, falling back to the default batch size.
func (d Deps) Sched() *scheduler.Scheduler {
	if d.Scheduler == nil {
		return &scheduler.Scheduler{BatchSize: 3}
	}
	return d.Scheduler
}

type noBrowser struct{}

func (noBrowser) Render(context.Context, string, browser.RenderOptions) (*browser.Rendered, error) {
	return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "no browser available", nil)
}
