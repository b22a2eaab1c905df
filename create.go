package pdfstow

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/pdfstow/pdfstow/internal/pdf"
	"github.com/pdfstow/pdfstow/internal/pdffilter"
)

// Create encodes the given files into one container written to w. The
// result is both a valid PDF 1.5 document showing a listing page and a
// lossless archive restorable with Decode.
//
// Files are embedded in the order given. Payloads are read from each
// Source's AbsPath and compressed, concurrently when workers allow; every
// other construction step runs on the calling goroutine. Create aborts on
// the first failed file.
func Create(ctx context.Context, w io.Writer, files []Source, opts ...CreateOption) (*CreateStats, error) {
	cfg := createConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.log()
	logger.Info("creating archive", "files", len(files))

	payloads, err := compressSources(ctx, files, cfg.workerCount())
	if err != nil {
		return nil, err
	}

	doc := pdf.NewDocument()
	if cfg.objectsPerStream > 0 {
		doc.ObjectsPerStream = cfg.objectsPerStream
	}

	// The pages tree is referenced by each page before it is defined;
	// the ID is allocated up front and resolved at assembly time.
	pagesID := doc.NewObjectID()

	entries := make([]FileEntry, len(files))
	var totalBytes int64
	for i, src := range files {
		p := payloads[i]
		logger.Info("adding file", "path", src.Path, "size", p.size)

		streamID := doc.Add(pdf.NewStream(pdf.Dict{
			"Type":     embeddedFileType,
			"Filter":   pdf.Name(p.filter),
			"Length1":  pdf.Integer(p.size),
			"StowPath": pdf.String(src.Path),
		}, p.compressed))

		entries[i] = FileEntry{
			Path:     filepath.ToSlash(src.Path),
			Size:     p.size,
			ModTime:  src.ModTime,
			Digest:   p.digest,
			streamID: streamID,
		}
		totalBytes += p.size
	}

	catalogID, err := addCatalogStream(doc, entries)
	if err != nil {
		return nil, err
	}
	rootID := addListingPage(doc, pagesID, entries, catalogID)
	doc.SetRoot(rootID)

	n, err := doc.WriteTo(w)
	if err != nil {
		return nil, fmt.Errorf("assemble container: %w", err)
	}

	logger.Info("archive created", "files", len(entries), "bytes", totalBytes, "container_bytes", n)
	return &CreateStats{
		FileCount:      len(entries),
		TotalBytes:     totalBytes,
		ContainerBytes: n,
	}, nil
}

// CreateDir archives every regular file under dir, paths recorded
// relative to dir. Symbolic links and other irregular files are skipped.
func CreateDir(ctx context.Context, w io.Writer, dir string, opts ...CreateOption) (*CreateStats, error) {
	files, err := WalkSources(dir)
	if err != nil {
		return nil, err
	}
	return Create(ctx, w, files, opts...)
}

// WalkSources collects (relativePath, absolutePath, size, mtime) tuples
// for every regular file under dir, in lexical walk order.
func WalkSources(dir string) ([]Source, error) {
	var files []Source
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, Source{
			Path:    filepath.ToSlash(rel),
			AbsPath: path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}

// payload is one compressed file body awaiting embedding.
type payload struct {
	compressed []byte
	filter     string
	size       int64
	digest     digest.Digest
}

// compressSources reads and compresses every source. Compression of one
// file is independent of the rest, so the work fans out across workers;
// results come back indexed so embedding order stays deterministic.
func compressSources(ctx context.Context, files []Source, workers int) ([]payload, error) {
	payloads := make([]payload, len(files))

	if workers <= 1 || len(files) <= 1 {
		for i, src := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			p, err := compressSource(src)
			if err != nil {
				return nil, err
			}
			payloads[i] = p
		}
		return payloads, nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, src := range files {
		i, src := i, src
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := compressSource(src)
			if err != nil {
				return err
			}
			payloads[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return payloads, nil
}

// compressSource loads one file and produces its stream payload.
func compressSource(src Source) (payload, error) {
	data, err := os.ReadFile(src.AbsPath)
	if err != nil {
		return payload{}, fmt.Errorf("read %s: %w", src.Path, err)
	}
	compressed, filter, err := pdffilter.Compress(data)
	if err != nil {
		return payload{}, fmt.Errorf("compress %s: %w", src.Path, err)
	}
	return payload{
		compressed: compressed,
		filter:     filter,
		size:       int64(len(data)),
		digest:     digest.FromBytes(data),
	}, nil
}

// addCatalogStream serializes the catalog document and embeds it as one
// compressed stream, tagged so the decoder can tell it from file streams.
func addCatalogStream(doc *pdf.Document, entries []FileEntry) (pdf.ObjectID, error) {
	raw, err := marshalCatalog(entries)
	if err != nil {
		return pdf.ObjectID{}, fmt.Errorf("serialize catalog: %w", err)
	}
	compressed, filter, err := pdffilter.Compress(raw)
	if err != nil {
		return pdf.ObjectID{}, fmt.Errorf("compress catalog: %w", err)
	}
	return doc.Add(pdf.NewStream(pdf.Dict{
		"Type":    pdf.Name("Metadata"),
		"Subtype": catalogSubtype,
		"Filter":  pdf.Name(filter),
		"Length1": pdf.Integer(len(raw)),
	}, compressed)), nil
}

// addListingPage builds the human-viewable page tree and the document
// root. The page objects never reference archive streams; the root holds
// the only link the decoder follows.
func addListingPage(doc *pdf.Document, pagesID pdf.ObjectID, entries []FileEntry, catalogID pdf.ObjectID) pdf.ObjectID {
	fontID := doc.Add(pdf.Dict{
		"Type":     pdf.Name("Font"),
		"Subtype":  pdf.Name("Type1"),
		"BaseFont": pdf.Name("Courier"),
	})
	contentID := doc.Add(pdf.NewStream(pdf.Dict{}, buildListing(entries)))
	pageID := doc.Add(pdf.Dict{
		"Type":     pdf.Name("Page"),
		"Parent":   pdf.Reference(pagesID),
		"Contents": pdf.Reference(contentID),
		"Resources": pdf.Dict{
			"Font": pdf.Dict{
				listingFont: pdf.Reference(fontID),
			},
		},
		"MediaBox": pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(612), pdf.Integer(792)},
	})
	doc.Set(pagesID, pdf.Dict{
		"Type":  pdf.Name("Pages"),
		"Kids":  pdf.Array{pdf.Reference(pageID)},
		"Count": pdf.Integer(1),
	})
	return doc.Add(pdf.Dict{
		"Type":         pdf.Name("Catalog"),
		"Pages":        pdf.Reference(pagesID),
		catalogRootKey: pdf.Reference(catalogID),
	})
}
