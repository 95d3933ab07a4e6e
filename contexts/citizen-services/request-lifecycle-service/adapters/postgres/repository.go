package postgresadapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
	domainerrors "pqrsd/contexts/citizen-services/request-lifecycle-service/domain/errors"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/ports"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(
		&requestModel{},
		&traceEventModel{},
		&outboxModel{},
		&attachmentModel{},
		&radicadoCounterModel{},
	); err != nil {
		return fmt.Errorf("migrate lifecycle tables: %w", err)
	}
	return nil
}

func (r *Repository) CreateRequest(
	ctx context.Context,
	request entities.Request,
	created entities.TraceEvent,
	outbox *ports.EventEnvelope,
) error {
	if !request.ValidateCreate() || created.EventType != entities.EventCreated || created.RequestID != request.ID {
		return domainerrors.ErrInvalidRequestInput
	}
	row := requestModelFromEntity(request)
	event := traceEventModelFromEntity(created)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrDuplicateRadicado
			}
			return err
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}
		if outbox != nil {
			return appendOutbox(tx, *outbox)
		}
		return nil
	})
}

func (r *Repository) GetRequest(ctx context.Context, requestID string) (entities.Request, error) {
	return r.findRequest(ctx, "request_id = ?", strings.TrimSpace(requestID))
}

func (r *Repository) GetRequestByRadicado(ctx context.Context, radicado string) (entities.Request, error) {
	return r.findRequest(ctx, "radicado = ?", strings.TrimSpace(radicado))
}

func (r *Repository) findRequest(ctx context.Context, query string, arg string) (entities.Request, error) {
	var row requestModel
	err := r.db.WithContext(ctx).
		Where(query, arg).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Request{}, domainerrors.ErrNotFound
		}
		return entities.Request{}, err
	}
	return row.toEntity(), nil
}

// CommitTransition is a compare-and-swap on version. State update, trace row
// and outbox row share one transaction.
func (r *Repository) CommitTransition(ctx context.Context, transition ports.Transition) error {
	next := transition.Request
	if transition.Event.RequestID != next.ID || transition.Event.Sequence != next.Version {
		return domainerrors.ErrMalformedTraceEvent
	}
	event := traceEventModelFromEntity(transition.Event)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&requestModel{}).
			Where("request_id = ? AND version = ?", next.ID, transition.ExpectedVersion).
			Updates(requestUpdates(next))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&requestModel{}).Where("request_id = ?", next.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domainerrors.ErrNotFound
			}
			return domainerrors.ErrStaleVersion
		}
		if err := tx.Create(&event).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrStaleVersion
			}
			return err
		}
		if transition.Outbox != nil {
			return appendOutbox(tx, *transition.Outbox)
		}
		return nil
	})
}

func (r *Repository) CountByState(ctx context.Context) (map[entities.State]int, error) {
	var rows []struct {
		State string `gorm:"column:state"`
		Count int    `gorm:"column:count"`
	}
	if err := r.db.WithContext(ctx).
		Model(&requestModel{}).
		Select("state, count(*) AS count").
		Group("state").
		Scan(&rows).
		Error; err != nil {
		return nil, err
	}
	counts := make(map[entities.State]int, len(rows))
	for _, row := range rows {
		counts[entities.State(row.State)] = row.Count
	}
	return counts, nil
}

func (r *Repository) ListOverdue(ctx context.Context, today civil.Date, limit int) ([]entities.Request, error) {
	tx := r.db.WithContext(ctx).
		Where("due_at IS NOT NULL AND due_at < ? AND state <> ?", today.In(time.UTC), string(entities.StateFinalized)).
		Order("due_at ASC").
		Order("radicado ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var rows []requestModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.Request, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// Append writes a standalone trace row. Transitions use CommitTransition.
func (r *Repository) Append(ctx context.Context, event entities.TraceEvent) error {
	if !event.Validate() {
		return domainerrors.ErrMalformedTraceEvent
	}
	row := traceEventModelFromEntity(event)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int64
		if err := tx.Model(&traceEventModel{}).
			Where("request_id = ?", row.RequestID).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&last).
			Error; err != nil {
			return err
		}
		if row.Sequence != last+1 {
			return domainerrors.ErrOutOfOrderTraceEvent
		}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrOutOfOrderTraceEvent
			}
			return err
		}
		return nil
	})
}

func (r *Repository) LastSequence(ctx context.Context, requestID string) (int64, error) {
	var last int64
	if err := r.db.WithContext(ctx).
		Model(&traceEventModel{}).
		Where("request_id = ?", strings.TrimSpace(requestID)).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&last).
		Error; err != nil {
		return 0, err
	}
	return last, nil
}

func (r *Repository) History(ctx context.Context, requestID string) ([]entities.TraceEvent, error) {
	var rows []traceEventModel
	if err := r.db.WithContext(ctx).
		Where("request_id = ?", strings.TrimSpace(requestID)).
		Order("sequence ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.TraceEvent, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// NextRadicado bumps the counter of the issuing year in one upsert, so
// serials restart at 1 every January.
func (r *Repository) NextRadicado(ctx context.Context, issuedAt time.Time) (string, error) {
	row := radicadoCounterModel{Year: issuedAt.Year(), Serial: 1}
	upsert := r.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "year"}},
			DoUpdates: clause.Assignments(map[string]any{
				"serial": gorm.Expr(radicadoCounterModel{}.TableName() + ".serial + 1"),
			}),
		},
		clause.Returning{Columns: []clause.Column{{Name: "serial"}}},
	).Create(&row)
	if upsert.Error != nil {
		return "", fmt.Errorf("issue radicado: %w", upsert.Error)
	}
	return fmt.Sprintf("PQRSD-%04d-%06d", row.Year, row.Serial), nil
}

func (r *Repository) Put(ctx context.Context, fileName string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", domainerrors.ErrAttachmentRequired
	}
	sum := sha256.Sum256(content)
	row := attachmentModel{
		Ref:       "att_" + uuid.NewString(),
		FileName:  strings.TrimSpace(fileName),
		Checksum:  hex.EncodeToString(sum[:]),
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", err
	}
	return row.Ref, nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func appendOutbox(tx *gorm.DB, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return tx.Create(&row).Error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
