// Package backup writes ledger snapshots to, and reads them back from, a
// local file or a Google Cloud Storage object.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/finsight/internal/domain"
	"google.golang.org/api/option"
)

// FormatVersion is written into every backup and checked on restore.
const FormatVersion = 1

var (
	ErrInvalidURI         = errors.New("invalid GCS URI")
	ErrUnsupportedVersion = errors.New("unsupported backup format version")
	ErrDuplicateID        = errors.New("duplicate id in backup")
)

// Document is the on-disk backup format.
type Document struct {
	FormatVersion int             `json:"formatVersion"`
	CreatedAt     time.Time       `json:"createdAt"`
	Snapshot      domain.Snapshot `json:"snapshot"`
}

// Encode writes snap as an indented backup document.
func Encode(w io.Writer, snap domain.Snapshot, createdAt time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Document{
		FormatVersion: FormatVersion,
		CreatedAt:     createdAt.UTC(),
		Snapshot:      snap,
	})
}

// Decode reads a backup document. Account and transaction ids must be unique.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode backup: %w", err)
	}
	if doc.FormatVersion != FormatVersion {
		return Document{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.FormatVersion)
	}
	if doc.Snapshot.Accounts == nil {
		doc.Snapshot.Accounts = []domain.Account{}
	}
	if doc.Snapshot.Transactions == nil {
		doc.Snapshot.Transactions = []domain.Transaction{}
	}
	accounts := make(map[string]struct{}, len(doc.Snapshot.Accounts))
	for _, a := range doc.Snapshot.Accounts {
		if _, dup := accounts[a.ID]; dup {
			return Document{}, fmt.Errorf("%w: account %s", ErrDuplicateID, a.ID)
		}
		accounts[a.ID] = struct{}{}
	}
	txs := make(map[string]struct{}, len(doc.Snapshot.Transactions))
	for _, tx := range doc.Snapshot.Transactions {
		if _, dup := txs[tx.ID]; dup {
			return Document{}, fmt.Errorf("%w: transaction %s", ErrDuplicateID, tx.ID)
		}
		txs[tx.ID] = struct{}{}
	}
	return doc, nil
}

// IsGCSURI reports whether target names a GCS object.
func IsGCSURI(target string) bool {
	return strings.HasPrefix(target, "gs://")
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object name.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !IsGCSURI(uri) {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w (no object path): %s", ErrInvalidURI, uri)
	}
	return parts[0], parts[1], nil
}

// DefaultObjectName names a backup taken at t, e.g.
// "backups/finsight-20261017T093000Z.json".
func DefaultObjectName(prefix string, t time.Time) string {
	name := "finsight-" + t.UTC().Format("20060102T150405Z") + ".json"
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Save writes snap to target, a gs:// URI or a local file path.
func Save(ctx context.Context, target string, snap domain.Snapshot, now time.Time, opts ...option.ClientOption) error {
	if !IsGCSURI(target) {
		f, err := os.Create(target)
		if err != nil {
			return fmt.Errorf("create %q: %w", target, err)
		}
		if err := Encode(f, snap, now); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}

	bucket, object, err := ParseGCSURI(target)
	if err != nil {
		return err
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/json"
	if err := Encode(w, snap, now); err != nil {
		_ = w.Close()
		return fmt.Errorf("write GCS object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// Fetch reads a backup from source, a gs:// URI or a local file path.
func Fetch(ctx context.Context, source string, opts ...option.ClientOption) (Document, error) {
	if !IsGCSURI(source) {
		f, err := os.Open(source)
		if err != nil {
			return Document{}, fmt.Errorf("open %q: %w", source, err)
		}
		defer f.Close()
		return Decode(f)
	}

	bucket, object, err := ParseGCSURI(source)
	if err != nil {
		return Document{}, err
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return Document{}, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	return Decode(rc)
}
