// Package s3 provides an S3-backed blobstore.Store. The caller supplies a
// configured *s3.Client; credential and endpoint wiring stays outside the
// library.
package s3
