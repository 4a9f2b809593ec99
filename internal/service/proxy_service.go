package service

import (
	"context"
	"errors"

	"readiness-sync/internal/domain"
	"readiness-sync/internal/repository"
	"readiness-sync/internal/websocket"
	"readiness-sync/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Broadcaster interface {
	Broadcast(message *websocket.Message) error
}

// ProxyService executes proxy actions against the row store. Failures are
// reported in the response envelope, never as Go errors, since the callback
// contract has no other channel for them.
type ProxyService struct {
	rows   repository.RowRepository
	hub    Broadcaster
	logger *zap.Logger
}

func NewProxyService(rows repository.RowRepository, hub Broadcaster, log *zap.Logger) *ProxyService {
	return &ProxyService{
		rows:   rows,
		hub:    hub,
		logger: logger.OrNop(log).Named("proxy"),
	}
}

func (s *ProxyService) Handle(ctx context.Context, req *domain.Request) *domain.Response {
	switch req.Action {
	case domain.ActionCreate:
		return s.create(ctx, req)
	case domain.ActionUpdate:
		return s.update(ctx, req)
	case domain.ActionList:
		return s.list(ctx, repository.RowKindAssessment, req.Limit)
	case domain.ActionListQualifications:
		return s.list(ctx, repository.RowKindQualification, req.Limit)
	}
	return failure("unknown action")
}

func (s *ProxyService) create(ctx context.Context, req *domain.Request) *domain.Response {
	if req.Assessment == nil {
		return failure("missing assessment")
	}

	rowID := uuid.NewString()
	row := domain.RowFromAssessment(rowID, req.Assessment)
	row.Source = domain.SourceAssessment
	if err := s.rows.Create(ctx, repository.RowKindAssessment, &row); err != nil {
		s.logger.Error("create row failed", zap.Error(err))
		return failure("failed to save assessment")
	}

	s.announce(websocket.TypeRowCreated, &row)
	s.logger.Info("row created",
		zap.String("row_id", rowID),
		zap.String("venture_id", row.VentureID),
		zap.Int("assessment_number", int(row.AssessmentNumber)),
	)
	return &domain.Response{Success: true, RowID: domain.LooseString(rowID)}
}

func (s *ProxyService) update(ctx context.Context, req *domain.Request) *domain.Response {
	if req.Assessment == nil {
		return failure("missing assessment")
	}
	if req.RowID == "" {
		return failure("rowId is required for update")
	}

	if _, err := s.rows.FindByID(ctx, repository.RowKindAssessment, req.RowID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return failure("row not found")
		}
		s.logger.Error("lookup row failed", zap.String("row_id", req.RowID), zap.Error(err))
		return failure("failed to update assessment")
	}

	row := domain.RowFromAssessment(req.RowID, req.Assessment)
	row.Source = domain.SourceAssessment
	if err := s.rows.Update(ctx, repository.RowKindAssessment, &row); err != nil {
		s.logger.Error("update row failed", zap.String("row_id", req.RowID), zap.Error(err))
		return failure("failed to update assessment")
	}

	s.announce(websocket.TypeRowUpdated, &row)
	return &domain.Response{Success: true, RowID: domain.LooseString(req.RowID)}
}

func (s *ProxyService) list(ctx context.Context, kind repository.RowKind, limit int) *domain.Response {
	rows, err := s.rows.List(ctx, kind, limit)
	if err != nil {
		s.logger.Error("list rows failed", zap.String("kind", string(kind)), zap.Error(err))
		return failure("failed to list rows")
	}

	source := domain.SourceAssessment
	if kind == repository.RowKindQualification {
		source = domain.SourceQualification
	}
	for i := range rows {
		if rows[i].Source == "" {
			rows[i].Source = source
		}
	}
	if rows == nil {
		rows = []domain.Row{}
	}
	return &domain.Response{Success: true, Rows: rows}
}

func (s *ProxyService) announce(msgType websocket.MessageType, row *domain.Row) {
	if s.hub == nil {
		return
	}
	msg, err := websocket.NewMessage(msgType, &websocket.RowChangePayload{
		RowID:            row.RowID.String(),
		Kind:             string(repository.RowKindAssessment),
		VentureID:        row.VentureID,
		VentureName:      row.VentureName,
		AdvisorName:      row.AdvisorName,
		AssessmentNumber: int(row.AssessmentNumber),
	})
	if err == nil {
		err = s.hub.Broadcast(msg)
	}
	if err != nil {
		s.logger.Warn("broadcast failed", zap.Error(err))
	}
}

func failure(msg string) *domain.Response {
	return &domain.Response{Success: false, Error: msg}
}
