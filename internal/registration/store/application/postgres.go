package application

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"vivaha/internal/registration/models"
	id "vivaha/pkg/domain"
	"vivaha/pkg/platform/sentinel"
	txcontext "vivaha/pkg/platform/tx"
)

// PostgresStore persists applications. Execute uses SELECT ... FOR UPDATE so
// the row stays locked across validate-then-mutate; callers run it inside a
// transaction (tx in context) to extend the lock over companion writes such
// as the audit entry.
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

const applicationColumns = `
	id, owner_user_id, status, groom, bride, declarations, progress,
	created_by_admin, verified, verified_at, verified_by,
	certificate_number, registration_date, created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, app *models.Application) error {
	groom, bride, declarations, err := marshalDetails(app)
	if err != nil {
		return err
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, insertArgs(app, groom, bride, declarations)...)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, applicationID id.ApplicationID) (*models.Application, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+applicationColumns+` FROM applications WHERE id = $1
	`, uuid.UUID(applicationID))
	return scanApplication(row)
}

func (s *PostgresStore) Update(ctx context.Context, app *models.Application) error {
	return s.update(ctx, s.execer(ctx), app)
}

// Execute locks the row with FOR UPDATE, runs validate then mutate, and
// writes the result back. When no transaction is in context it opens one so
// the lock actually spans the read-modify-write.
func (s *PostgresStore) Execute(ctx context.Context, applicationID id.ApplicationID, validate func(*models.Application) error, mutate func(*models.Application)) (*models.Application, error) {
	if _, ok := txcontext.From(ctx); ok {
		return s.executeLocked(ctx, s.execer(ctx), applicationID, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin application tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	app, err := s.executeLocked(ctx, tx, applicationID, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit application tx: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) executeLocked(ctx context.Context, execer queryExecutor, applicationID id.ApplicationID, validate func(*models.Application) error, mutate func(*models.Application)) (*models.Application, error) {
	row := execer.QueryRowContext(ctx, `
		SELECT `+applicationColumns+` FROM applications WHERE id = $1 FOR UPDATE
	`, uuid.UUID(applicationID))
	app, err := scanApplication(row)
	if err != nil {
		return nil, err
	}
	if validate != nil {
		if err := validate(app); err != nil {
			return nil, err
		}
	}
	mutate(app)
	if err := s.update(ctx, execer, app); err != nil {
		return nil, err
	}
	return app, nil
}

func (s *PostgresStore) update(ctx context.Context, execer queryExecutor, app *models.Application) error {
	groom, bride, declarations, err := marshalDetails(app)
	if err != nil {
		return err
	}
	result, err := execer.ExecContext(ctx, `
		UPDATE applications SET
			status = $2, groom = $3, bride = $4, declarations = $5,
			progress = $6, verified = $7, verified_at = $8, verified_by = $9,
			certificate_number = $10, registration_date = $11, updated_at = $12
		WHERE id = $1
	`,
		uuid.UUID(app.ID),
		string(app.Status),
		groom,
		bride,
		declarations,
		app.Progress,
		app.Verified,
		app.VerifiedAt,
		verifiedByValue(app),
		nullableString(app.CertificateNumber),
		app.RegistrationDate,
		app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func insertArgs(app *models.Application, groom, bride, declarations []byte) []any {
	return []any{
		uuid.UUID(app.ID),
		uuid.UUID(app.OwnerUserID),
		string(app.Status),
		groom,
		bride,
		declarations,
		app.Progress,
		app.CreatedByAdmin,
		app.Verified,
		app.VerifiedAt,
		verifiedByValue(app),
		nullableString(app.CertificateNumber),
		app.RegistrationDate,
		app.CreatedAt,
		app.UpdatedAt,
	}
}

func marshalDetails(app *models.Application) (groom, bride, declarations []byte, err error) {
	if groom, err = json.Marshal(app.Groom); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal groom details: %w", err)
	}
	if bride, err = json.Marshal(app.Bride); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal bride details: %w", err)
	}
	if declarations, err = json.Marshal(app.Declarations); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal declarations: %w", err)
	}
	return groom, bride, declarations, nil
}

func verifiedByValue(app *models.Application) any {
	if app.VerifiedBy == nil {
		return nil
	}
	return uuid.UUID(*app.VerifiedBy)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		app               models.Application
		appID             uuid.UUID
		ownerID           uuid.UUID
		status            string
		groomBytes        []byte
		brideBytes        []byte
		declarationsBytes []byte
		verifiedAt        sql.NullTime
		verifiedBy        *uuid.UUID
		certificateNumber sql.NullString
		registrationDate  sql.NullTime
	)
	err := row.Scan(
		&appID,
		&ownerID,
		&status,
		&groomBytes,
		&brideBytes,
		&declarationsBytes,
		&app.Progress,
		&app.CreatedByAdmin,
		&app.Verified,
		&verifiedAt,
		&verifiedBy,
		&certificateNumber,
		&registrationDate,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan application: %w", err)
	}

	app.ID = id.ApplicationID(appID)
	app.OwnerUserID = id.UserID(ownerID)
	app.Status = models.ApplicationStatus(status)
	if err := json.Unmarshal(groomBytes, &app.Groom); err != nil {
		return nil, fmt.Errorf("unmarshal groom details: %w", err)
	}
	if err := json.Unmarshal(brideBytes, &app.Bride); err != nil {
		return nil, fmt.Errorf("unmarshal bride details: %w", err)
	}
	if err := json.Unmarshal(declarationsBytes, &app.Declarations); err != nil {
		return nil, fmt.Errorf("unmarshal declarations: %w", err)
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		app.VerifiedAt = &t
	}
	if verifiedBy != nil {
		vb := id.UserID(*verifiedBy)
		app.VerifiedBy = &vb
	}
	if certificateNumber.Valid {
		app.CertificateNumber = certificateNumber.String
	}
	if registrationDate.Valid {
		t := registrationDate.Time
		app.RegistrationDate = &t
	}
	return &app, nil
}
