// Package filesystem unpacks plugin package archives safely.
//
// Supported containers, detected by content rather than file name:
//   - zip (klauspost/compress/zip)
//   - tar, tar.gz and tar.zst (klauspost gzip and zstd readers)
//
// Extraction:
//   - Rejects entries that would land outside the destination
//   - Skips OS junk such as __MACOSX/** and **/.DS_Store
//   - Skips symlinks and device files
//   - Caps total bytes and file count
//
// FindRoot then locates the package root inside the extracted tree,
// tolerating a single wrapper directory. Inspect lists an installed
// package with content-sniffed MIME types.
//
// Example Usage:
//
//	ex := filesystem.NewExtractor(64 << 20)
//	if _, err := ex.Extract(ctx, archivePath, stagingDir); err != nil {
//		return err
//	}
//	root, err := filesystem.FindRoot(stagingDir, "manifest.json")
package filesystem
