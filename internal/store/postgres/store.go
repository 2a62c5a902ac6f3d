package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"qms/queue-core/internal/models"
	"qms/queue-core/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const ticketColumns = `
	ticket_id, number, service_id, day_key, requester_name, national_id, phone, email,
	is_priority, source, notify_email, notify_sms, status, officer_id, transferred_from_id, notes,
	created_at, called_at, started_at, completed_at, notified_approaching_at, notified_called_at`

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = pgTx.Rollback(ctx)
		}
	}()

	if err = fn(ctx, &txStore{tx: pgTx}); err != nil {
		return err
	}
	return pgTx.Commit(ctx)
}

func (s *Store) GetTicket(ctx context.Context, ticketID string) (models.Ticket, error) {
	return getTicket(ctx, s.pool, ticketID, false)
}

func (s *Store) GetService(ctx context.Context, serviceID string) (models.Service, error) {
	return getService(ctx, s.pool, serviceID, false)
}

func (s *Store) GetOfficer(ctx context.Context, officerID string) (models.Officer, error) {
	return getOfficer(ctx, s.pool, officerID)
}

func (s *Store) ListStatusLogs(ctx context.Context, ticketID string) ([]models.StatusLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT log_id, ticket_id, officer_id, from_status, to_status, notes, created_at
		FROM status_logs
		WHERE ticket_id = $1
		ORDER BY created_at ASC, seq ASC
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.StatusLog
	for rows.Next() {
		var entry models.StatusLog
		var officerID, fromStatus, notes sql.NullString
		if err := rows.Scan(&entry.LogID, &entry.TicketID, &officerID, &fromStatus, &entry.ToStatus, &notes, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.OfficerID = nullStringPtr(officerID)
		if fromStatus.Valid {
			status := models.Status(fromStatus.String)
			entry.FromStatus = &status
		}
		entry.Notes = notes.String
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *Store) ListDocuments(ctx context.Context, ticketID string) ([]models.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT document_id, ticket_id, name, content_type, size_bytes, storage_key, created_at
		FROM ticket_documents
		WHERE ticket_id = $1
		ORDER BY created_at ASC, document_id ASC
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.DocumentID, &doc.TicketID, &doc.Name, &doc.ContentType, &doc.SizeBytes, &doc.StorageKey, &doc.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) ListWaiting(ctx context.Context, serviceID string, day models.Day) ([]models.Ticket, error) {
	return listWaiting(ctx, s.pool, serviceID, day, 0)
}

func (s *Store) ListCurrentCalls(ctx context.Context, day models.Day) ([]models.Ticket, error) {
	return queryTickets(ctx, s.pool, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE status IN ('called', 'processing') AND called_at >= $1 AND called_at < $2
		ORDER BY called_at DESC
	`, day.Start, day.End)
}

func (s *Store) ListOfficerTickets(ctx context.Context, officerID string) ([]models.Ticket, error) {
	return queryTickets(ctx, s.pool, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE officer_id = $1 AND status IN ('called', 'processing')
		ORDER BY called_at ASC
	`, officerID)
}

func (s *Store) CountAvailableOfficers(ctx context.Context, serviceID string) (int, error) {
	return countAvailableOfficers(ctx, s.pool, serviceID)
}

func countAvailableOfficers(ctx context.Context, q querier, serviceID string) (int, error) {
	var count int
	err := q.QueryRow(ctx, `
		SELECT COUNT(*) FROM officers
		WHERE service_id = $1 AND is_active AND is_available
	`, serviceID).Scan(&count)
	return count, err
}

func (s *Store) DailyStats(ctx context.Context, day models.Day, serviceID string) (models.DailyStats, error) {
	stats := models.DailyStats{
		Day:       day.Key,
		ServiceID: serviceID,
		ByStatus:  make(map[models.Status]int, len(models.Statuses)),
	}
	for _, status := range models.Statuses {
		stats.ByStatus[status] = 0
	}

	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM tickets
		WHERE created_at >= $1 AND created_at < $2 AND ($3::text = '' OR service_id = $3)
		GROUP BY status
	`, day.Start, day.End, serviceID)
	if err != nil {
		return models.DailyStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var status models.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return models.DailyStats{}, err
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return models.DailyStats{}, err
	}

	err = s.pool.QueryRow(ctx, `
		SELECT
			(AVG(EXTRACT(EPOCH FROM (called_at - created_at))) / 60)::float8,
			(AVG(EXTRACT(EPOCH FROM (completed_at - started_at))) / 60)::float8
		FROM tickets
		WHERE status = 'completed' AND created_at >= $1 AND created_at < $2 AND ($3::text = '' OR service_id = $3)
	`, day.Start, day.End, serviceID).Scan(&stats.AvgWaitMinutes, &stats.AvgServiceMinutes)
	if err != nil {
		return models.DailyStats{}, err
	}
	return stats, nil
}

func (s *Store) MarkApproachingNotified(ctx context.Context, ticketID string, at time.Time) (bool, error) {
	return s.markGuard(ctx, "notified_approaching_at", ticketID, at)
}

func (s *Store) MarkCalledNotified(ctx context.Context, ticketID string, at time.Time) (bool, error) {
	return s.markGuard(ctx, "notified_called_at", ticketID, at)
}

func (s *Store) markGuard(ctx context.Context, column, ticketID string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE tickets SET %[1]s = $2
		WHERE ticket_id = $1 AND %[1]s IS NULL
	`, column), ticketID, at)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE ticket_id = $1)`, ticketID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, store.ErrTicketNotFound
	}
	return false, nil
}

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) GetService(ctx context.Context, serviceID string) (models.Service, error) {
	return getService(ctx, t.tx, serviceID, false)
}

func (t *txStore) LockService(ctx context.Context, serviceID string) (models.Service, error) {
	return getService(ctx, t.tx, serviceID, true)
}

func (t *txStore) GetOfficer(ctx context.Context, officerID string) (models.Officer, error) {
	return getOfficer(ctx, t.tx, officerID)
}

func (t *txStore) OfficerLoad(ctx context.Context, officerID string) (int, error) {
	var load int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM tickets WHERE officer_id = $1 AND status = 'processing'
	`, officerID).Scan(&load)
	return load, err
}

func (t *txStore) CountTickets(ctx context.Context, serviceID string, day models.Day) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM tickets WHERE service_id = $1 AND day_key = $2
	`, serviceID, day.Key).Scan(&count)
	return count, err
}

func (t *txStore) LockTicket(ctx context.Context, ticketID string) (models.Ticket, error) {
	return getTicket(ctx, t.tx, ticketID, true)
}

func (t *txStore) LockNextWaiting(ctx context.Context, serviceID string, day models.Day) (models.Ticket, bool, error) {
	tickets, err := queryTickets(ctx, t.tx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE service_id = $1 AND status = 'waiting' AND created_at >= $2 AND created_at < $3
		ORDER BY is_priority DESC, created_at ASC, ticket_id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, serviceID, day.Start, day.End)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if len(tickets) == 0 {
		return models.Ticket{}, false, nil
	}
	return tickets[0], true, nil
}

func (t *txStore) NextWaiting(ctx context.Context, serviceID string, day models.Day, limit int) ([]models.Ticket, error) {
	return listWaiting(ctx, t.tx, serviceID, day, limit)
}

func (t *txStore) CountAvailableOfficers(ctx context.Context, serviceID string) (int, error) {
	return countAvailableOfficers(ctx, t.tx, serviceID)
}

func (t *txStore) InsertTicket(ctx context.Context, ticket models.Ticket) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
	`, ticketArgs(ticket)...)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.ErrDuplicateNumber
	}
	return err
}

func (t *txStore) UpdateTicket(ctx context.Context, ticket models.Ticket) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE tickets SET
			status = $2, officer_id = $3, notes = $4, called_at = $5, started_at = $6, completed_at = $7,
			notified_approaching_at = $8, notified_called_at = $9
		WHERE ticket_id = $1
	`, ticket.TicketID, ticket.Status, ticket.OfficerID, nullIfEmpty(ticket.Notes), ticket.CalledAt, ticket.StartedAt, ticket.CompletedAt,
		ticket.NotifiedApproachingAt, ticket.NotifiedCalledAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrTicketNotFound
	}
	return nil
}

func (t *txStore) InsertDocuments(ctx context.Context, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, doc := range docs {
		batch.Queue(`
			INSERT INTO ticket_documents (document_id, ticket_id, name, content_type, size_bytes, storage_key, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, doc.DocumentID, doc.TicketID, doc.Name, doc.ContentType, doc.SizeBytes, doc.StorageKey, doc.CreatedAt)
	}
	results := t.tx.SendBatch(ctx, batch)
	for range docs {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}

func (t *txStore) InsertStatusLog(ctx context.Context, entry models.StatusLog) error {
	if entry.LogID == "" {
		entry.LogID = uuid.NewString()
	}
	var from interface{}
	if entry.FromStatus != nil {
		from = string(*entry.FromStatus)
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO status_logs (log_id, ticket_id, officer_id, from_status, to_status, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.LogID, entry.TicketID, entry.OfficerID, from, entry.ToStatus, nullIfEmpty(entry.Notes), entry.CreatedAt)
	return err
}

func getService(ctx context.Context, q querier, serviceID string, lock bool) (models.Service, error) {
	query := `
		SELECT service_id, name, prefix, average_time, max_daily_queue, is_active
		FROM services
		WHERE service_id = $1
	`
	if lock {
		query += " FOR UPDATE"
	}
	var svc models.Service
	err := q.QueryRow(ctx, query, serviceID).Scan(&svc.ServiceID, &svc.Name, &svc.Prefix, &svc.AverageTime, &svc.MaxDailyQueue, &svc.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Service{}, store.ErrServiceNotFound
		}
		return models.Service{}, err
	}

	rows, err := q.Query(ctx, `
		SELECT weekday, opens, closes, is_active
		FROM service_schedules
		WHERE service_id = $1
	`, serviceID)
	if err != nil {
		return models.Service{}, err
	}
	defer rows.Close()
	svc.Schedule = models.Schedule{}
	for rows.Next() {
		var weekday int
		var window models.Window
		if err := rows.Scan(&weekday, &window.Opens, &window.Closes, &window.IsActive); err != nil {
			return models.Service{}, err
		}
		svc.Schedule[time.Weekday(weekday)] = window
	}
	return svc, rows.Err()
}

func getOfficer(ctx context.Context, q querier, officerID string) (models.Officer, error) {
	var officer models.Officer
	err := q.QueryRow(ctx, `
		SELECT officer_id, name, service_id, counter_number, is_active, is_available, max_concurrent
		FROM officers
		WHERE officer_id = $1
	`, officerID).Scan(&officer.OfficerID, &officer.Name, &officer.ServiceID, &officer.CounterNumber, &officer.IsActive, &officer.IsAvailable, &officer.MaxConcurrent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Officer{}, store.ErrOfficerNotFound
		}
		return models.Officer{}, err
	}
	return officer, nil
}

func getTicket(ctx context.Context, q querier, ticketID string, lock bool) (models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_id = $1`
	if lock {
		query += " FOR UPDATE"
	}
	ticket, err := scanTicket(q.QueryRow(ctx, query, ticketID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, err
	}
	return ticket, nil
}

func listWaiting(ctx context.Context, q querier, serviceID string, day models.Day, limit int) ([]models.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE service_id = $1 AND status = 'waiting' AND created_at >= $2 AND created_at < $3
		ORDER BY is_priority DESC, created_at ASC, ticket_id ASC
	`
	args := []interface{}{serviceID, day.Start, day.End}
	if limit > 0 {
		query += " LIMIT $4"
		args = append(args, limit)
	}
	return queryTickets(ctx, q, query, args...)
}

func queryTickets(ctx context.Context, q querier, query string, args ...interface{}) ([]models.Ticket, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

func scanTicket(row pgx.Row) (models.Ticket, error) {
	var ticket models.Ticket
	var status string
	var officerID, transferredFrom, notes sql.NullString
	var calledAt, startedAt, completedAt, approachingAt, calledNotifiedAt sql.NullTime
	err := row.Scan(
		&ticket.TicketID, &ticket.Number, &ticket.ServiceID, &ticket.DayKey, &ticket.RequesterName,
		&ticket.NationalID, &ticket.Phone, &ticket.Email, &ticket.IsPriority, &ticket.Source,
		&ticket.NotifyEmail, &ticket.NotifySMS, &status, &officerID, &transferredFrom, &notes,
		&ticket.CreatedAt, &calledAt, &startedAt, &completedAt, &approachingAt, &calledNotifiedAt,
	)
	if err != nil {
		return models.Ticket{}, err
	}
	if ticket.Status, err = models.ParseStatus(status); err != nil {
		return models.Ticket{}, fmt.Errorf("ticket %s: %w", ticket.TicketID, err)
	}
	ticket.OfficerID = nullStringPtr(officerID)
	ticket.TransferredFromID = nullStringPtr(transferredFrom)
	ticket.Notes = notes.String
	ticket.CreatedAt = ticket.CreatedAt.UTC()
	ticket.CalledAt = nullTimePtr(calledAt)
	ticket.StartedAt = nullTimePtr(startedAt)
	ticket.CompletedAt = nullTimePtr(completedAt)
	ticket.NotifiedApproachingAt = nullTimePtr(approachingAt)
	ticket.NotifiedCalledAt = nullTimePtr(calledNotifiedAt)
	return ticket, nil
}

func ticketArgs(ticket models.Ticket) []interface{} {
	return []interface{}{
		ticket.TicketID, ticket.Number, ticket.ServiceID, ticket.DayKey, ticket.RequesterName,
		ticket.NationalID, ticket.Phone, ticket.Email, ticket.IsPriority, ticket.Source,
		ticket.NotifyEmail, ticket.NotifySMS, ticket.Status, ticket.OfficerID, ticket.TransferredFromID, nullIfEmpty(ticket.Notes),
		ticket.CreatedAt, ticket.CalledAt, ticket.StartedAt, ticket.CompletedAt, ticket.NotifiedApproachingAt, ticket.NotifiedCalledAt,
	}
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	at := value.Time.UTC()
	return &at
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
