// Package history serves authorized reads of recorded conversations. Every
// read passes through the access evaluator before the store is touched.
package history

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/zooconnect/ambassador-chat/internal/model/chat"
	"github.com/zooconnect/ambassador-chat/internal/model/identity"
	"github.com/zooconnect/ambassador-chat/internal/service/access"
	store "github.com/zooconnect/ambassador-chat/internal/store/history"
)

// Service answers history queries under the role-based access policy.
type Service struct {
	store  store.Store
	logger zerolog.Logger
}

// NewService wires the query service.
func NewService(st store.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  st,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// GetConversation returns one page of a session's turns in order, provided
// the requester may view the owning user's history.
func (s *Service) GetConversation(ctx context.Context, requester identity.Identity, sessionID string, p store.Page) ([]chat.Turn, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if d := access.CanView(requester, sess.UserID); !d.Allow {
		s.logger.Debug().
			Str("requester", requester.UserID).
			Str("session", sessionID).
			Str("reason", string(d.Reason)).
			Msg("conversation read denied")
		return nil, access.Forbidden(d)
	}

	return s.store.TurnsBySession(ctx, sessionID, p)
}

// ListRequest narrows a conversation listing. An empty TargetUserID means
// the requester's own scope: their sessions, a parent's wards, or every
// user for staff and admins.
type ListRequest struct {
	TargetUserID string
	Filter       store.Filter
}

// ListConversations returns session summaries visible to the requester,
// most recent activity first. Page sizes are capped even for staff/admin
// cross-user listings.
func (s *Service) ListConversations(ctx context.Context, requester identity.Identity, req ListRequest) ([]chat.SessionSummary, error) {
	if requester.Role == identity.RoleVisitor {
		return nil, access.Forbidden(access.Decision{Reason: access.NoAccessVisitor})
	}

	if req.TargetUserID == "" {
		switch requester.Role {
		case identity.RoleStaff, identity.RoleAdmin:
			return s.store.AllSessions(ctx, req.Filter)
		case identity.RoleParent:
			return s.store.SessionsByGuardian(ctx, requester.GuardianOf, req.Filter)
		default:
			return s.store.SessionsByUser(ctx, requester.UserID, req.Filter)
		}
	}

	d := access.CanView(requester, req.TargetUserID)
	if !d.Allow {
		return nil, access.Forbidden(d)
	}

	if d.Reason == access.GuardianAccess {
		return s.store.SessionsByGuardian(ctx, []string{req.TargetUserID}, req.Filter)
	}
	return s.store.SessionsByUser(ctx, req.TargetUserID, req.Filter)
}
