// Package pdfstow encodes files and directories into a single container
// that is at once a valid, viewable PDF 1.5 document and a losslessly
// reversible archive.
//
// Each input file is deflated into its own stream object; a JSON catalog
// (path, size, modification time, stream reference, content digest) is
// stored as one more compressed stream and linked from the document root
// under a reserved key. A cosmetic listing page renders the file table in
// any PDF viewer, but the decoder never reads it: extraction follows only
// the trailer → root → catalog chain.
//
// Create an archive:
//
//	f, _ := os.Create("backup.pdf")
//	stats, err := pdfstow.CreateDir(ctx, f, "./src")
//
// Extract it:
//
//	data, _ := os.ReadFile("backup.pdf")
//	archive, err := pdfstow.Decode(data)
//	if err != nil {
//	    return err
//	}
//	stats, err := archive.ExtractAll(ctx, "./out")
//
// Paths are restored exactly as recorded, with no sandboxing of absolute
// or parent-traversing names; callers extracting untrusted containers
// must confine destDir themselves.
package pdfstow
