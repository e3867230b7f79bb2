// Package crawler defines the types and collaborator interfaces shared by the
// skill extraction pipeline, the crawl cursor, and the storage and transport
// adapters that feed them.
package crawler
