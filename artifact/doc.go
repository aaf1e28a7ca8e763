// Package artifact stores large encoded payloads outside the document
// store and pulls URI-referenced content into rows or the store. The
// store side speaks to any S3-compatible endpoint; the downloader side
// handles file://, s3:// and http(s):// sources with a bounded worker
// pool.
package artifact
