package scheduler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"landcrawler/internal/lemma"
	"landcrawler/internal/linkgraph"
	"landcrawler/internal/media"
	"landcrawler/internal/metrics"
	"landcrawler/internal/model"
	"landcrawler/internal/paragraph"
	"landcrawler/internal/quality"
	"landcrawler/internal/scrapeutil"
	"landcrawler/internal/sentiment"
)

// Executor runs one job to completion (or returns an error to fail
// it). ctx is cancelled cooperatively by the runner when the job's
// cancel_requested flag is observed or the idle timeout elapses.
type Executor func(ctx context.Context, d *Deps, job model.Job) (counters map[string]any, err error)

// Table dispatches by JobKind, the tagged-variant/handler-table
// substitute for per-type decorator dispatch.
func Table() map[model.JobKind]Executor {
	return map[model.JobKind]Executor{
		model.JobCrawl:       executeCrawl,
		model.JobDomainCrawl: executeDomainCrawl,
		model.JobReadable:    executeReadable,
		model.JobMedia:       executeMedia,
		model.JobLLM:         executeLLM,
		model.JobConsolidate: executeConsolidate,
		model.JobSEORank:     executeSEORank,
		model.JobHeuristic:   executeHeuristic,
	}
}

func paramString(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	v, _ := params[key].(string)
	return v
}

// loadDictionary returns the Land's cached lemma dictionary, building
// it from the Land row when the cache has nothing for this LandID yet.
func loadDictionary(ctx context.Context, d *Deps, land model.Land) *lemma.Dictionary {
	if dict := d.Dictionary.Get(land.ID); dict != nil {
		return dict
	}
	dict := lemma.Build(land.ID, land.Lang, land.Keywords)
	d.Dictionary.Set(land.ID, dict)
	return dict
}

// crawlCounters aggregates one crawl job's outcome across every
// candidate in every wave it ran, safe for concurrent updates from the
// per-wave worker pool.
type crawlCounters struct {
	fetched           int64
	ok                int64
	failed            int64
	skipped           int64
	capExceeded       int64
	cancelledInflight int64
	linksDiscovered   int64
	linksInserted     int64
}

func (c *crawlCounters) snapshot() map[string]any {
	return map[string]any{
		"fetched":            atomic.LoadInt64(&c.fetched),
		"ok":                 atomic.LoadInt64(&c.ok),
		"failed":             atomic.LoadInt64(&c.failed),
		"skipped":            atomic.LoadInt64(&c.skipped),
		"cap_exceeded":       atomic.LoadInt64(&c.capExceeded),
		"cancelled_inflight": atomic.LoadInt64(&c.cancelledInflight),
		"linksDiscovered":    atomic.LoadInt64(&c.linksDiscovered),
		"linksInserted":      atomic.LoadInt64(&c.linksInserted),
	}
}

// executeCrawl drives a Land's crawl end to end: it seeds depth-0
// expressions from the job's seedUrls, then processes wave by wave —
// every candidate at depth 0, then depth 1, and so on up to
// land.DepthLimit. A wave is pulled via ListCandidates and fully
// drained (re-querying until it comes back short of the page size)
// before the depth advances, so a link discovered mid-wave at depth+1
// is only ever picked up by the following wave, never the current one.
func executeCrawl(ctx context.Context, d *Deps, job model.Job) (map[string]any, error) {
	land, err := d.Store.GetLand(ctx, job.LandID)
	if err != nil {
		return nil, fmt.Errorf("load land: %w", err)
	}
	if err := seedCandidates(ctx, d, job); err != nil {
		return nil, fmt.Errorf("seed candidates: %w", err)
	}

	waveLimit := d.Cfg.Scheduler.WaveSizeLimit
	if waveLimit <= 0 {
		waveLimit = 50
	}
	concurrency := d.Cfg.Scheduler.PerJobConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	totals := &crawlCounters{}
	for depth := 0; depth <= land.DepthLimit; depth++ {
		for {
			if ctx.Err() != nil {
				return totals.snapshot(), ctx.Err()
			}
			candidates, err := d.Store.ListCandidates(ctx, job.LandID, depth, waveLimit)
			if err != nil {
				return totals.snapshot(), fmt.Errorf("list candidates at depth %d: %w", depth, err)
			}
			if len(candidates) == 0 {
				break
			}

			runWave(ctx, d, job, land, candidates, concurrency, totals)

			if err := d.Store.UpdateJobProgress(ctx, job.ID, wavePercent(depth, land.DepthLimit)); err != nil {
				d.Logger.Warn("update job progress failed", "job_id", job.ID, "error", err)
			}
			if len(candidates) < waveLimit {
				break
			}
		}
	}
	return totals.snapshot(), nil
}

// wavePercent gives a status poller a monotonic 0..99 estimate while a
// job runs; FinishJob stamps the terminal 100 itself on success.
func wavePercent(depth, depthLimit int) int {
	if depthLimit <= 0 {
		return 99
	}
	pct := (depth + 1) * 100 / (depthLimit + 1)
	if pct > 99 {
		pct = 99
	}
	return pct
}

// seedCandidates inserts the job's seedUrls as depth-0 Expression
// candidates. UpsertExpression is idempotent, so restarting a stale
// job never double-inserts them.
func seedCandidates(ctx context.Context, d *Deps, job model.Job) error {
	raw, _ := job.Params["seedUrls"].([]any)
	for _, v := range raw {
		seedURL := strings.TrimSpace(fmt.Sprint(v))
		if seedURL == "" {
			continue
		}
		base, err := url.Parse(seedURL)
		if err != nil || base.Hostname() == "" {
			continue
		}
		domainID, err := d.Store.UpsertDomain(ctx, job.LandID, base.Hostname())
		if err != nil {
			continue
		}
		if _, err := d.Store.UpsertExpression(ctx, &model.Expression{
			LandID: job.LandID, DomainID: domainID, URL: seedURL, Depth: 0,
		}); err != nil {
			continue
		}
	}
	return nil
}

// runWave dispatches candidates to crawlOne through a bounded pool of
// concurrency goroutines, publishing a progress update after every
// completed expression (the Channel itself rate-limits the live
// broadcast; the durable snapshot still advances on every call).
func runWave(ctx context.Context, d *Deps, job model.Job, land model.Land, candidates []model.Expression, concurrency int, totals *crawlCounters) {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			atomic.AddInt64(&totals.cancelledInflight, 1)
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(expr model.Expression) {
			defer wg.Done()
			defer func() { <-sem }()

			if ctx.Err() != nil {
				atomic.AddInt64(&totals.cancelledInflight, 1)
				return
			}

			outcome := crawlOne(ctx, d, job.LandID, land, expr)
			atomic.AddInt64(&totals.fetched, 1)
			if outcome.approved {
				atomic.AddInt64(&totals.ok, 1)
			} else {
				atomic.AddInt64(&totals.failed, 1)
			}
			atomic.AddInt64(&totals.linksDiscovered, int64(outcome.linksDiscovered))
			atomic.AddInt64(&totals.linksInserted, int64(outcome.linksInserted))

			if d.Progress != nil {
				d.Progress.Publish(ctx, job.ID, totals.snapshot(), fmt.Sprintf("processed %s", expr.URL))
			}
		}(candidate)
	}
	wg.Wait()
}

// crawlOutcome is one candidate's processing result, folded into the
// job's aggregate counters by runWave.
type crawlOutcome struct {
	approved        bool
	linksDiscovered int
	linksInserted   int
}

// crawlOne fetches, extracts, scores, and persists a single candidate
// expression, then discovers its outbound links and inserts them as
// depth+1 candidates for the next wave.
//
// approved_at is stamped on every terminal outcome, not only a
// relevant/high-quality one: it marks "the crawler is finished with
// this URL," not "this URL passed the relevance filter." Gating it on
// relevance would leave a zero-scoring expression permanently eligible
// and ListCandidates would keep handing it back to every future job.
func crawlOne(ctx context.Context, d *Deps, landID uuid.UUID, land model.Land, expr model.Expression) crawlOutcome {
	baseURL, err := url.Parse(expr.URL)
	if err != nil {
		_ = d.Store.ApproveExpression(ctx, expr.ID)
		return crawlOutcome{}
	}

	res := d.Fetcher.Fetch(ctx, expr.URL, true)
	status := res.StatusCode
	expr.HTTPStatus = &status

	extracted, extractErr := d.Extractor.Extract(ctx, expr.URL, res.Body, res.Err)
	if extractErr != nil || extracted == nil {
		if err := d.Store.RecordCrawlOutcome(ctx, &expr); err != nil {
			d.Logger.Error("record crawl outcome failed", "expression_id", expr.ID, "error", err)
			return crawlOutcome{}
		}
		if err := d.Store.ApproveExpression(ctx, expr.ID); err != nil {
			d.Logger.Error("approve expression failed", "expression_id", expr.ID, "error", err)
			return crawlOutcome{}
		}
		return crawlOutcome{approved: true}
	}

	expr.Title = extracted.Title
	expr.Description = extracted.Description
	expr.ReadableText = extracted.Readable
	expr.ExtractedBy = extracted.Strategy
	expr.Lang = extracted.Lang

	dict := loadDictionary(ctx, d, land)
	hits := dict.Score(extracted.Readable)
	expr.Relevance = float64(hits)

	q := quality.Compute(d.Cfg.Scorers.QualityWeights, quality.Input{
		HTTPStatus: status, Body: res.Body, ReadableText: extracted.Readable,
		Title: extracted.Title, Description: extracted.Description,
	})
	expr.Quality = q.Total

	sres := sentiment.Analyze(ctx, extracted.Readable, d.Cfg.Scorers.SentimentThreshold, d.LLM)
	expr.Sentiment = sres.Score
	expr.SentimentConfidence = sres.Confidence

	if err := d.Store.RecordCrawlOutcome(ctx, &expr); err != nil {
		d.Logger.Error("record crawl outcome failed", "expression_id", expr.ID, "error", err)
		return crawlOutcome{}
	}
	if err := d.Store.ApproveExpression(ctx, expr.ID); err != nil {
		d.Logger.Error("approve expression failed", "expression_id", expr.ID, "error", err)
		return crawlOutcome{}
	}
	metrics.ExpressionsApprovedTotal.WithLabelValues(landID.String()).Inc()

	if segments := paragraph.Segment(res.Body, 40); len(segments) > 0 {
		modelSegments := make([]model.Paragraph, len(segments))
		for i, s := range segments {
			modelSegments[i] = model.Paragraph{Ordinal: s.Ordinal, Text: s.Text}
		}
		if err := d.Store.ReplaceParagraphs(ctx, expr.ID, modelSegments); err != nil {
			d.Logger.Warn("replace paragraphs failed", "expression_id", expr.ID, "error", err)
		}
	}

	if expr.Depth >= land.DepthLimit {
		return crawlOutcome{approved: true}
	}

	discovered := discoverAnchors(res.Body, baseURL)
	if expr.Depth == 0 {
		discovered = append(discovered, discoverFromSitemap(ctx, d, baseURL)...)
	}

	rawLinks := make([]string, len(discovered))
	anchorByURL := make(map[string]string, len(discovered))
	for i, link := range discovered {
		rawLinks[i] = link.URL
		anchorByURL[link.URL] = link.Anchor
	}
	capped := scrapeutil.FilterLinks(rawLinks, expr.URL, false, d.Cfg.Heuristics.MaxLinksPerPage)

	inserted := 0
	for _, linkURL := range capped {
		normalized, err := linkgraph.Normalize(linkURL)
		if err != nil {
			continue
		}
		normalized = d.Rewriter.Rewrite(normalized)
		lu, err := url.Parse(normalized)
		if err != nil {
			continue
		}
		if !sameHostOrSubdomain(baseURL.Hostname(), lu.Hostname(), true) {
			continue
		}
		targetDomainID, err := d.Store.UpsertDomain(ctx, landID, lu.Hostname())
		if err != nil {
			continue
		}
		targetID, err := d.Store.UpsertExpression(ctx, &model.Expression{
			LandID: landID, DomainID: targetDomainID, URL: normalized, Depth: expr.Depth + 1,
		})
		if err != nil {
			continue
		}
		if ok, err := d.Store.UpsertLink(ctx, &model.ExpressionLink{
			LandID: landID, SourceID: expr.ID, TargetID: targetID, Anchor: anchorByURL[linkURL],
		}); err == nil && ok {
			inserted++
		}
	}
	return crawlOutcome{approved: true, linksDiscovered: len(discovered), linksInserted: inserted}
}

// executeDomainCrawl fetches each registered Domain's root URL and
// refreshes its title/description/http_status. It operates on Domain
// rows directly, independently of any Expression belonging to that
// host — unlike executeCrawl it never touches the link graph.
func executeDomainCrawl(ctx context.Context, d *Deps, job model.Job) (map[string]any, error) {
	domains, err := d.Store.ListDomains(ctx, job.LandID)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}

	updated := 0
	for _, domain := range domains {
		if ctx.Err() != nil {
			return map[string]any{"updated": updated}, ctx.Err()
		}

		rootURL := "https://" + domain.Name
		res := d.Fetcher.Fetch(ctx, rootURL, true)
		status := res.StatusCode

		var title, description string
		if res.Err == nil && len(res.Body) > 0 {
			if extracted, err := d.Extractor.Extract(ctx, rootURL, res.Body, res.Err); err == nil && extracted != nil {
				title = extracted.Title
				description = extracted.Description
			}
		}
		if err := d.Store.UpdateDomainMetadata(ctx, domain.ID, title, description, &status); err != nil {
			d.Logger.Error("update domain metadata failed", "domain_id", domain.ID, "error", err)
			continue
		}
		updated++
	}
	return map[string]any{"updated": updated}, nil
}

// executeReadable re-runs the extraction cascade for every approved
// expression whose readable text is still empty despite a 200 fetch
// (ListReadableRefreshCandidates), applying smart_merge: a refreshed
// result only replaces the stored one when its strategy outranks what
// is already there.
func executeReadable(ctx context.Context, d *Deps, job model.Job) (map[string]any, error) {
	limit := d.Cfg.Scheduler.WaveSizeLimit
	if limit <= 0 {
		limit = 50
	}
	candidates, err := d.Store.ListReadableRefreshCandidates(ctx, job.LandID, limit)
	if err != nil {
		return nil, fmt.Errorf("list readable-refresh candidates: %w", err)
	}

	refreshed := 0
	for _, expr := range candidates {
		if ctx.Err() != nil {
			break
		}
		res := d.Fetcher.Fetch(ctx, expr.URL, true)
		extracted, err := d.Extractor.Extract(ctx, expr.URL, res.Body, res.Err)
		if err != nil || extracted == nil {
			continue
		}
		if !extracted.Strategy.Outranks(expr.ExtractedBy) {
			continue
		}
		expr.Title = extracted.Title
		expr.Description = extracted.Description
		expr.ReadableText = extracted.Readable
		expr.ExtractedBy = extracted.Strategy
		expr.Lang = extracted.Lang
		if err := d.Store.RecordCrawlOutcome(ctx, &expr); err != nil {
			d.Logger.Error("record crawl outcome failed", "expression_id", expr.ID, "error", err)
			continue
		}
		refreshed++
	}
	return map[string]any{"refreshed": refreshed}, nil
}

// executeMedia analyzes outstanding images for every approved
// expression with media_processed = false (ListMediaCandidates). Raw
// image URLs are never persisted from the original crawl, so the page
// is re-extracted here to recover them before each new image is
// analyzed and stored.
func executeMedia(ctx context.Context, d *Deps, job model.Job) (map[string]any, error) {
	limit := d.Cfg.Scheduler.WaveSizeLimit
	if limit <= 0 {
		limit = 50
	}
	candidates, err := d.Store.ListMediaCandidates(ctx, job.LandID, limit)
	if err != nil {
		return nil, fmt.Errorf("list media candidates: %w", err)
	}

	processed, analyzed := 0, 0
	for _, expr := range candidates {
		if ctx.Err() != nil {
			break
		}
		res := d.Fetcher.Fetch(ctx, expr.URL, true)
		extracted, err := d.Extractor.Extract(ctx, expr.URL, res.Body, res.Err)
		if err != nil || extracted == nil {
			if err := d.Store.MarkMediaProcessed(ctx, expr.ID); err == nil {
				processed++
			}
			continue
		}
		for _, mediaURL := range extracted.Images {
			mres := d.Fetcher.Fetch(ctx, mediaURL, false)
			if mres.Err != nil || len(mres.Body) == 0 {
				continue
			}
			analysis, err := media.Analyze(strings.NewReader(string(mres.Body)))
			if err != nil {
				continue
			}
			m := &model.Media{
				ExpressionID: expr.ID, URL: mediaURL, Width: analysis.Width, Height: analysis.Height,
				DominantRGB: analysis.DominantRGB, PerceptualHash: analysis.PerceptualHash,
			}
			if err := d.Store.InsertMedia(ctx, m); err == nil {
				analyzed++
			}
		}
		if err := d.Store.MarkMediaProcessed(ctx, expr.ID); err == nil {
			processed++
		}
	}
	return map[string]any{"processed": processed, "analyzed": analyzed}, nil
}

// executeLLM validates every approved expression whose lexicon
// relevance already clears min_rel but has no verdict yet
// (ListLLMValidationCandidates) against the Land's keyword-derived
// inclusion question, recording valid_llm so the next run of this
// batch never revisits it.
func executeLLM(ctx context.Context, d *Deps, job model.Job) (map[string]any, error) {
	land, err := d.Store.GetLand(ctx, job.LandID)
	if err != nil {
		return nil, fmt.Errorf("load land: %w", err)
	}
	limit := d.Cfg.Scheduler.WaveSizeLimit
	if limit <= 0 {
		limit = 50
	}
	candidates, err := d.Store.ListLLMValidationCandidates(ctx, job.LandID, d.Cfg.Scorers.MinRelevanceForLLM, limit)
	if err != nil {
		return nil, fmt.Errorf("list llm validation candidates: %w", err)
	}

	question := fmt.Sprintf("Does this page relate to: %s?", strings.Join(land.Keywords, ", "))
	approved, rejected := 0, 0
	for _, expr := range candidates {
		if ctx.Err() != nil {
			break
		}
		verdict, err := d.LLM.Validate(ctx, expr.ID.String(), question, expr.ReadableText)
		if err != nil {
			continue
		}
		if err := d.Store.SetValidLLM(ctx, expr.ID, verdict.Approved); err != nil {
			d.Logger.Error("set valid_llm failed", "expression_id", expr.ID, "error", err)
			continue
		}
		if verdict.Approved {
			approved++
		} else {
			rejected++
		}
	}
	return map[string]any{"approved": approved, "rejected": rejected}, nil
}

// executeConsolidate rebuilds a Land's derived state entirely from
// what is already stored, without refetching anything over the
// network: the dictionary, every approved expression's relevance
// score, its outbound edge set, and its discovered media, all
// recomputed from ReadableText (the extractor's markdown rendering,
// which is the only persisted form of a fetched page). Running this
// twice with no intervening crawl must change nothing but updated_at
// and the identity of media and expression_links rows, which are
// deleted and re-inserted with new ids (see DESIGN.md for the
// row-identity caveat).
func executeConsolidate(ctx context.Context, d *Deps, job model.Job) (map[string]any, error) {
	land, err := d.Store.GetLand(ctx, job.LandID)
	if err != nil {
		return nil, err
	}
	dict := lemma.Build(land.ID, land.Lang, land.Keywords)
	d.Dictionary.Set(land.ID, dict)

	words := make([]model.Word, 0, len(land.Keywords))
	for _, kw := range land.Keywords {
		words = append(words, model.Word{LandID: land.ID, Term: kw, Lemma: kw})
	}
	if err := d.Store.ReplaceWords(ctx, land.ID, words); err != nil {
		return nil, err
	}
	if err := d.Store.UpdateLandDictionaryTimestamp(ctx, land.ID); err != nil {
		return nil, err
	}

	expressions, err := d.Store.ListApprovedExpressions(ctx, land.ID)
	if err != nil {
		return nil, fmt.Errorf("list approved expressions: %w", err)
	}
	byURL := make(map[string]model.Expression, len(expressions))
	for _, expr := range expressions {
		byURL[expr.URL] = expr
	}

	if err := d.Store.DeleteMediaForLand(ctx, land.ID); err != nil {
		return nil, fmt.Errorf("delete stale media: %w", err)
	}

	rescored, edgesRebuilt, mediaFound := 0, 0, 0
	for _, expr := range expressions {
		if ctx.Err() != nil {
			return map[string]any{"rescored": rescored, "edgesRebuilt": edgesRebuilt, "mediaFound": mediaFound}, ctx.Err()
		}

		hits := dict.Score(expr.ReadableText)
		if err := d.Store.UpdateExpressionRelevance(ctx, expr.ID, float64(hits)); err != nil {
			d.Logger.Error("update expression relevance failed", "expression_id", expr.ID, "error", err)
			continue
		}
		rescored++

		base, err := url.Parse(expr.URL)
		if err != nil {
			continue
		}

		links := discoverLinksFromMarkdown(expr.ReadableText)
		edges := make([]model.ExpressionLink, 0, len(links))
		for _, link := range links {
			normalized, err := linkgraph.Normalize(link.URL)
			if err != nil {
				continue
			}
			normalized = d.Rewriter.Rewrite(normalized)
			lu, err := url.Parse(normalized)
			if err != nil || !sameHostOrSubdomain(base.Hostname(), lu.Hostname(), true) {
				continue
			}

			var targetID uuid.UUID
			if existing, ok := byURL[normalized]; ok {
				targetID = existing.ID
			} else if expr.Depth < land.DepthLimit {
				targetDomainID, err := d.Store.UpsertDomain(ctx, land.ID, lu.Hostname())
				if err != nil {
					continue
				}
				targetID, err = d.Store.UpsertExpression(ctx, &model.Expression{
					LandID: land.ID, DomainID: targetDomainID, URL: normalized, Depth: expr.Depth + 1,
				})
				if err != nil {
					continue
				}
			} else {
				continue
			}
			edges = append(edges, model.ExpressionLink{LandID: land.ID, SourceID: expr.ID, TargetID: targetID, Anchor: link.Anchor})
		}
		if err := d.Store.ReplaceOutboundLinks(ctx, land.ID, expr.ID, edges); err != nil {
			d.Logger.Error("replace outbound links failed", "expression_id", expr.ID, "error", err)
			continue
		}
		edgesRebuilt++

		for _, mediaURL := range discoverImagesFromMarkdown(expr.ReadableText) {
			res := d.Fetcher.Fetch(ctx, mediaURL, false)
			if res.Err != nil || len(res.Body) == 0 {
				continue
			}
			analysis, err := media.Analyze(strings.NewReader(string(res.Body)))
			if err != nil {
				continue
			}
			m := &model.Media{
				ExpressionID: expr.ID, URL: mediaURL, Width: analysis.Width, Height: analysis.Height,
				DominantRGB: analysis.DominantRGB, PerceptualHash: analysis.PerceptualHash,
			}
			if err := d.Store.InsertMedia(ctx, m); err == nil {
				mediaFound++
			}
		}
	}

	return map[string]any{
		"dictionarySize": dict.Len(),
		"rescored":       rescored,
		"edgesRebuilt":   edgesRebuilt,
		"mediaFound":     mediaFound,
	}, nil
}

// executeSEORank fetches third-party SEO signals for every Domain
// registered in the Land, rather than trusting a caller-supplied list.
// It counts successful calls; the returned metrics are not persisted.
func executeSEORank(ctx context.Context, d *Deps, job model.Job) (map[string]any, error) {
	domains, err := d.Store.ListDomains(ctx, job.LandID)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}

	fetched := 0
	for _, domain := range domains {
		if ctx.Err() != nil {
			break
		}
		if _, err := d.SEO.Metrics(ctx, domain.Name); err == nil {
			fetched++
		}
	}
	return map[string]any{"fetched": fetched}, nil
}

// executeHeuristic re-applies the current link-rewrite rules to every
// Expression's URL in the Land, re-keying any whose logical form
// changes under the rules in effect now (e.g. a tracking-parameter
// rule added since the URL was first crawled). A rewrite landing on a
// URL another Expression already owns is a merge-or-skip: the
// duplicate is left under its original URL rather than failing the
// job.
func executeHeuristic(ctx context.Context, d *Deps, job model.Job) (map[string]any, error) {
	expressions, err := d.Store.ListExpressions(ctx, job.LandID)
	if err != nil {
		return nil, fmt.Errorf("list expressions: %w", err)
	}

	rekeyed, skipped := 0, 0
	for _, expr := range expressions {
		if ctx.Err() != nil {
			break
		}
		normalized, err := linkgraph.Normalize(expr.URL)
		if err != nil {
			continue
		}
		rewritten := d.Rewriter.Rewrite(normalized)
		if rewritten == expr.URL {
			continue
		}
		ok, err := d.Store.RekeyExpressionURL(ctx, expr.ID, rewritten)
		if err != nil {
			d.Logger.Error("rekey expression url failed", "expression_id", expr.ID, "error", err)
			continue
		}
		if ok {
			rekeyed++
		} else {
			skipped++
		}
	}
	return map[string]any{"rekeyed": rekeyed, "skipped": skipped}, nil
}
