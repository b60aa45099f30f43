// Package crawler implements the breadth-first crawl scheduler together with
// the URL classifier, visited-set and frontier bookkeeping, and the shared
// types exchanged with the fetcher, link extractor and storage backends.
package crawler
