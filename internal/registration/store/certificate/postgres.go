package certificate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"vivaha/internal/registration/models"
	id "vivaha/pkg/domain"
	"vivaha/pkg/platform/sentinel"
	txcontext "vivaha/pkg/platform/tx"
)

// uniqueViolation is the Postgres SQLSTATE raised when an insert hits the
// UNIQUE (application_id) index on certificates.
const uniqueViolation = "23505"

// PostgresStore persists certificates. The one-certificate-per-application
// invariant lives in the database as a unique index; Create translates the
// resulting conflict into sentinel.ErrAlreadyUsed so services can take the
// idempotent path.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type queryExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) queryExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const certificateColumns = `
	id, application_id, verification_id, certificate_number,
	registration_date, groom_name, bride_name, pdf_url, can_download, issued_at
`

func (s *PostgresStore) Create(ctx context.Context, cert *models.Certificate) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO certificates (`+certificateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		uuid.UUID(cert.ID),
		uuid.UUID(cert.ApplicationID),
		cert.VerificationID,
		cert.CertificateNumber,
		cert.RegistrationDate,
		cert.GroomName,
		cert.BrideName,
		cert.PDFURL,
		cert.CanDownload,
		cert.IssuedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

// isUniqueViolation recognizes SQLSTATE 23505 from either Postgres driver:
// lib/pq in production, pgx in the integration harness.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}

func (s *PostgresStore) FindByID(ctx context.Context, certificateID id.CertificateID) (*models.Certificate, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+certificateColumns+` FROM certificates WHERE id = $1
	`, uuid.UUID(certificateID))
	return scanCertificate(row)
}

func (s *PostgresStore) FindByApplication(ctx context.Context, applicationID id.ApplicationID) (*models.Certificate, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+certificateColumns+` FROM certificates WHERE application_id = $1
	`, uuid.UUID(applicationID))
	return scanCertificate(row)
}

// Execute locks the certificate row with FOR UPDATE across validate-then-
// mutate. Only can_download is mutable; everything else is written once at
// issuance.
func (s *PostgresStore) Execute(ctx context.Context, certificateID id.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error) {
	if _, ok := txcontext.From(ctx); ok {
		return s.executeLocked(ctx, s.execer(ctx), certificateID, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin certificate tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cert, err := s.executeLocked(ctx, tx, certificateID, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit certificate tx: %w", err)
	}
	return cert, nil
}

func (s *PostgresStore) executeLocked(ctx context.Context, execer queryExecutor, certificateID id.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error) {
	row := execer.QueryRowContext(ctx, `
		SELECT `+certificateColumns+` FROM certificates WHERE id = $1 FOR UPDATE
	`, uuid.UUID(certificateID))
	cert, err := scanCertificate(row)
	if err != nil {
		return nil, err
	}
	if validate != nil {
		if err := validate(cert); err != nil {
			return nil, err
		}
	}
	mutate(cert)

	_, err = execer.ExecContext(ctx, `
		UPDATE certificates SET can_download = $2 WHERE id = $1
	`, uuid.UUID(cert.ID), cert.CanDownload)
	if err != nil {
		return nil, fmt.Errorf("update certificate: %w", err)
	}
	return cert, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row rowScanner) (*models.Certificate, error) {
	var (
		cert   models.Certificate
		certID uuid.UUID
		appID  uuid.UUID
	)
	err := row.Scan(
		&certID,
		&appID,
		&cert.VerificationID,
		&cert.CertificateNumber,
		&cert.RegistrationDate,
		&cert.GroomName,
		&cert.BrideName,
		&cert.PDFURL,
		&cert.CanDownload,
		&cert.IssuedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan certificate: %w", err)
	}
	cert.ID = id.CertificateID(certID)
	cert.ApplicationID = id.ApplicationID(appID)
	return &cert, nil
}
