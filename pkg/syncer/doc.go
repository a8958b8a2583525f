// Package syncer drives a full sync run: it lists enrollments, walks
// each notes feed backward through pkg/feed, deduplicates and window
// clips against the persisted watermark, applies the soft asset cap,
// and hands the surviving assets to the download pool for fetch and
// metadata stamping.
//
// Enrollments are isolated from one another. A fatal feed error aborts
// only its own enrollment and leaves that watermark untouched; asset
// level failures are logged and skipped without failing the run.
//
// Typical usage:
//
//	client := sproutbook.NewClient(cfg.Service.BaseURL, time.Duration(cfg.Service.RequestTimeout), log)
//	client.SetSession(cookie, accountID, userAgent)
//
//	s, err := syncer.New(cfg, client, stamper)
//	if err != nil {
//		return err
//	}
//	report, err := s.Run(ctx)
package syncer
