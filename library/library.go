// Package library keeps rendered documents in a local SQLite database: the
// source, its rendered HTML, owner and sharing flag.
package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// ErrNotFound is returned when document does not exist or belongs to
// somebody else.
var ErrNotFound = errors.New("document not found")

// Document is a single library entry.
type Document struct {
	ID      string
	Title   string
	Content string
	HTML    string
	Owner   string
	Shared  bool
	Created time.Time
	Updated time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id      TEXT PRIMARY KEY,
	title   TEXT NOT NULL,
	content TEXT NOT NULL,
	html    TEXT NOT NULL DEFAULT '',
	owner   TEXT NOT NULL,
	shared  INTEGER NOT NULL DEFAULT 0,
	created INTEGER NOT NULL,
	updated INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_owner ON documents(owner, created);
`

const columns = `id, title, content, html, owner, shared, created, updated`

// Library is document store, safe for concurrent use.
type Library struct {
	mu   sync.Mutex
	conn *sqlite.Conn
	log  *zap.Logger
}

// Open opens (creating when necessary) library database at path.
func Open(path string, log *zap.Logger) (*Library, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("unable to create library directory: %w", err)
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("unable to open library %s: %w", path, err)
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return nil, multierr.Append(fmt.Errorf("unable to prepare library schema: %w", err), conn.Close())
	}

	log = log.Named("library")
	log.Debug("Library opened", zap.String("path", path))
	return &Library{conn: conn, log: log}, nil
}

// DefaultPath is used when configuration does not name library database.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "mkd", "library.db"), nil
}

func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	return err
}

// with runs fn on connection, interruptible by ctx.
func (l *Library) with(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return errors.New("library is closed")
	}
	l.conn.SetInterrupt(ctx.Done())
	defer l.conn.SetInterrupt(nil)
	return fn(l.conn)
}

func flag(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func scan(stmt *sqlite.Stmt) Document {
	return Document{
		ID:      stmt.ColumnText(0),
		Title:   stmt.ColumnText(1),
		Content: stmt.ColumnText(2),
		HTML:    stmt.ColumnText(3),
		Owner:   stmt.ColumnText(4),
		Shared:  stmt.ColumnInt64(5) != 0,
		Created: time.Unix(0, stmt.ColumnInt64(6)),
		Updated: time.Unix(0, stmt.ColumnInt64(7)),
	}
}

func (l *Library) query(ctx context.Context, query string, args ...any) ([]Document, error) {
	var docs []Document
	err := l.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				docs = append(docs, scan(stmt))
				return nil
			},
		})
	})
	return docs, err
}

// Save stores document. Document without ID is created, receives new ID and
// creation time; otherwise existing document of the same owner is updated.
func (l *Library) Save(ctx context.Context, doc *Document) error {
	if doc.Owner == "" || doc.Content == "" {
		return errors.New("document owner and content are required")
	}
	if doc.Title == "" {
		doc.Title = Title(doc.HTML, doc.Content)
	}
	now := time.Now()

	if doc.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("unable to generate document id: %w", err)
		}
		err = l.with(ctx, func(conn *sqlite.Conn) error {
			return sqlitex.Execute(conn,
				`INSERT INTO documents (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				&sqlitex.ExecOptions{Args: []any{id.String(), doc.Title, doc.Content, doc.HTML, doc.Owner, flag(doc.Shared), now.UnixNano(), now.UnixNano()}})
		})
		if err != nil {
			return fmt.Errorf("unable to save document: %w", err)
		}
		doc.ID, doc.Created, doc.Updated = id.String(), now, now
		l.log.Debug("Document created", zap.String("id", doc.ID), zap.String("title", doc.Title))
		return nil
	}

	err := l.with(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn,
			`UPDATE documents SET title = ?, content = ?, html = ?, updated = ? WHERE id = ? AND owner = ?`,
			&sqlitex.ExecOptions{Args: []any{doc.Title, doc.Content, doc.HTML, now.UnixNano(), doc.ID, doc.Owner}}); err != nil {
			return err
		}
		if conn.Changes() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("unable to update document %s: %w", doc.ID, err)
	}
	doc.Updated = now
	l.log.Debug("Document updated", zap.String("id", doc.ID))
	return nil
}

// Get returns document by ID regardless of owner.
func (l *Library) Get(ctx context.Context, id string) (*Document, error) {
	docs, err := l.query(ctx, `SELECT `+columns+` FROM documents WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("unable to read document %s: %w", id, err)
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return &docs[0], nil
}

// List returns all documents, newest first.
func (l *Library) List(ctx context.Context) ([]Document, error) {
	return l.query(ctx, `SELECT `+columns+` FROM documents ORDER BY created DESC, id DESC`)
}

// ListByOwner returns owner's documents, newest first.
func (l *Library) ListByOwner(ctx context.Context, owner string) ([]Document, error) {
	return l.query(ctx, `SELECT `+columns+` FROM documents WHERE owner = ? ORDER BY created DESC, id DESC`, owner)
}

// ListShared returns documents their owners decided to share, newest first.
func (l *Library) ListShared(ctx context.Context) ([]Document, error) {
	return l.query(ctx, `SELECT `+columns+` FROM documents WHERE shared <> 0 ORDER BY created DESC, id DESC`)
}

// ToggleShare flips sharing flag of owner's document and returns new state.
func (l *Library) ToggleShare(ctx context.Context, id, owner string) (bool, error) {
	var shared bool
	err := l.with(ctx, func(conn *sqlite.Conn) (err error) {
		defer sqlitex.Save(conn)(&err)

		found := false
		err = sqlitex.Execute(conn, `SELECT shared FROM documents WHERE id = ? AND owner = ?`, &sqlitex.ExecOptions{
			Args: []any{id, owner},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found, shared = true, stmt.ColumnInt64(0) == 0
				return nil
			},
		})
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		return sqlitex.Execute(conn, `UPDATE documents SET shared = ?, updated = ? WHERE id = ?`,
			&sqlitex.ExecOptions{Args: []any{flag(shared), time.Now().UnixNano(), id}})
	})
	if err != nil {
		return false, fmt.Errorf("unable to toggle sharing of %s: %w", id, err)
	}
	return shared, nil
}

// Delete removes owner's document.
func (l *Library) Delete(ctx context.Context, id, owner string) error {
	err := l.with(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, `DELETE FROM documents WHERE id = ? AND owner = ?`,
			&sqlitex.ExecOptions{Args: []any{id, owner}}); err != nil {
			return err
		}
		if conn.Changes() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("unable to delete document %s: %w", id, err)
	}
	return nil
}

// DeleteAll removes every document and returns their number.
func (l *Library) DeleteAll(ctx context.Context) (int, error) {
	var count int
	err := l.with(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, `DELETE FROM documents`, nil); err != nil {
			return err
		}
		count = conn.Changes()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("unable to delete documents: %w", err)
	}
	l.log.Info("Library purged", zap.Int("documents", count))
	return count, nil
}

// Title picks document title: text of the first level one header of
// rendered HTML, then first non blank source line, then "Untitled".
func Title(rendered, source string) string {
	if doc, err := html.Parse(strings.NewReader(rendered)); err == nil {
		if t := firstHeader(doc); t != "" {
			return t
		}
	}
	for line := range strings.Lines(source) {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return "Untitled"
}

func firstHeader(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "h1" {
		return strings.TrimSpace(textOf(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := firstHeader(c); t != "" {
			return t
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textOf(c))
	}
	return b.String()
}
