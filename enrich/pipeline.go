package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/use-agent/harvest/extractor"
	"github.com/use-agent/harvest/metrics"
	"github.com/use-agent/harvest/models"
	"golang.org/x/sync/errgroup"
)

// Values of the enrichmentStatus field.
const (
	StatusCompleted = "completed"
	StatusNoData    = "no_data"
	StatusFailed    = "failed"
)

// DefaultBatchSize is the number of websites fetched concurrently.
const DefaultBatchSize = 5

// Pipeline enriches records in sequential batches and streams each one as
// soon as it is done.
type Pipeline struct {
	Finder    extractor.ContactFinder
	Emitter   extractor.Emitter // may be nil
	BatchSize int
}

// Run returns one enriched copy per input record, in input order. It never
// fails; per-record problems are reported in enrichmentStatus.
func (p *Pipeline) Run(ctx context.Context, correlationID string, places []models.Record, progress models.ProgressFunc) []models.Record {
	size := p.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	out := make([]models.Record, len(places))

	for start := 0; start < len(places); start += size {
		if ctx.Err() != nil {
			break
		}
		end := min(start+size, len(places))

		var g errgroup.Group
		g.SetLimit(size)
		for i := start; i < end; i++ {
			g.Go(func() error {
				rec := p.enrichOne(ctx, places[i])
				out[i] = rec
				metrics.RecordEnrichment(rec.String("enrichmentStatus"))
				if p.Emitter != nil {
					p.Emitter.EmitRecord(correlationID, rec)
				}
				return nil
			})
		}
		_ = g.Wait()
		progress.Report(end, len(places), fmt.Sprintf("enriched %d/%d", end, len(places)))
	}

	// Records skipped by cancellation keep their input form.
	for i, rec := range out {
		if rec == nil {
			out[i] = places[i].Clone()
		}
	}
	return out
}

func (p *Pipeline) enrichOne(ctx context.Context, place models.Record) (rec models.Record) {
	rec = place.Clone()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("enrichment panicked", "website", rec.String("website"), "panic", r)
			rec["enrichmentStatus"] = StatusFailed
			rec["enrichmentError"] = fmt.Sprintf("enrichment panicked: %v", r)
		}
	}()

	website := rec.String("website")
	if website == "" || p.Finder == nil {
		rec["enrichmentStatus"] = StatusNoData
		return rec
	}

	found, err := p.Finder.Enrich(ctx, website)
	if err != nil {
		slog.Warn("website enrichment failed", "website", website, "error", err)
		rec["enrichmentStatus"] = StatusFailed
		rec["enrichmentError"] = models.MessageOf(err)
		return rec
	}
	if found.Empty() {
		rec["enrichmentStatus"] = StatusNoData
		return rec
	}

	ApplyContacts(rec, found)
	rec["enrichmentStatus"] = StatusCompleted
	return rec
}

// ApplyContacts merges found into rec: emails, phones and addresses are
// appended without duplicates, email and phone are filled when empty,
// and social platforms already on the record are kept.
func ApplyContacts(rec models.Record, found *models.Contacts) {
	rec["emails"] = union(rec.Strings("emails"), found.Emails)
	rec["phones"] = union(rec.Strings("phones"), found.Phones)
	rec["addresses"] = union(rec.Strings("addresses"), found.Addresses)

	if rec.String("email") == "" && len(found.Emails) > 0 {
		rec["email"] = found.Emails[0]
		rec["emailVerified"] = true
	}
	if rec.String("phone") == "" && len(found.Phones) > 0 {
		rec["phone"] = found.Phones[0]
	}

	if len(found.Social) > 0 {
		social := map[string]any{}
		for k, v := range rec.Map("socialMedia") {
			social[k] = v
		}
		extractor.MergeSocial(social, found.Social)
		rec["socialMedia"] = social
	}
}

func union(dst, src []string) []string {
	out := make([]string, 0, len(dst)+len(src))
	for _, s := range slices.Concat(dst, src) {
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
