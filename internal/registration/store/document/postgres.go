package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"vivaha/internal/registration/models"
	id "vivaha/pkg/domain"
	"vivaha/pkg/platform/sentinel"
	txcontext "vivaha/pkg/platform/tx"
)

// PostgresStore persists documents. Execute locks the row with FOR UPDATE
// across validate-then-mutate.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type queryExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) queryExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const documentColumns = `
	id, application_id, type, belongs_to, status, rejection_reason, is_reuploaded, content_url, uploaded_at
`

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		uuid.UUID(doc.ID),
		uuid.UUID(doc.ApplicationID),
		string(doc.Type),
		string(doc.BelongsTo),
		string(doc.Status),
		nullString(doc.RejectionReason),
		doc.IsReuploaded,
		doc.ContentURL,
		doc.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, documentID id.DocumentID) (*models.Document, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id = $1
	`, uuid.UUID(documentID))
	return scanDocument(row)
}

func (s *PostgresStore) ListByApplication(ctx context.Context, applicationID id.ApplicationID) ([]*models.Document, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE application_id = $1
		ORDER BY uploaded_at ASC
	`, uuid.UUID(applicationID))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (s *PostgresStore) Execute(ctx context.Context, documentID id.DocumentID, validate func(*models.Document) error, mutate func(*models.Document)) (*models.Document, error) {
	if _, ok := txcontext.From(ctx); ok {
		return s.executeLocked(ctx, s.execer(ctx), documentID, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin document tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	doc, err := s.executeLocked(ctx, tx, documentID, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit document tx: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) executeLocked(ctx context.Context, execer queryExecutor, documentID id.DocumentID, validate func(*models.Document) error, mutate func(*models.Document)) (*models.Document, error) {
	row := execer.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE
	`, uuid.UUID(documentID))
	doc, err := scanDocument(row)
	if err != nil {
		return nil, err
	}
	if validate != nil {
		if err := validate(doc); err != nil {
			return nil, err
		}
	}
	mutate(doc)

	_, err = execer.ExecContext(ctx, `
		UPDATE documents SET
			status = $2, rejection_reason = $3, is_reuploaded = $4, content_url = $5, uploaded_at = $6
		WHERE id = $1
	`,
		uuid.UUID(doc.ID),
		string(doc.Status),
		nullString(doc.RejectionReason),
		doc.IsReuploaded,
		doc.ContentURL,
		doc.UploadedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	return doc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc       models.Document
		docID     uuid.UUID
		appID     uuid.UUID
		docType   string
		belongsTo string
		status    string
		reason    sql.NullString
	)
	err := row.Scan(
		&docID,
		&appID,
		&docType,
		&belongsTo,
		&status,
		&reason,
		&doc.IsReuploaded,
		&doc.ContentURL,
		&doc.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.ID = id.DocumentID(docID)
	doc.ApplicationID = id.ApplicationID(appID)
	doc.Type = models.DocumentType(docType)
	doc.BelongsTo = models.DocumentOwner(belongsTo)
	doc.Status = models.DocumentStatus(status)
	doc.RejectionReason = reason.String
	return &doc, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
