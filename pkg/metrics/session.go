package metrics

import (
	"context"

	"github.com/dmitrymomot/authkit/pkg/cookie"
	"github.com/dmitrymomot/authkit/pkg/session"
)

// InstrumentSessions counts the outcome of every call to sm.
func InstrumentSessions(sm session.SessionManager, m *Metrics) session.SessionManager {
	return &instrumentedSessions{next: sm, m: m}
}

type instrumentedSessions struct {
	next session.SessionManager
	m    *Metrics
}

func (s *instrumentedSessions) SetSession(ctx context.Context, jar cookie.Jar, p session.SetParams) bool {
	ok := s.next.SetSession(ctx, jar, p)
	s.m.SessionOp("set", ok)
	return ok
}

func (s *instrumentedSessions) GetSession(ctx context.Context, jar cookie.Jar) (session.Payload, bool) {
	data, ok := s.next.GetSession(ctx, jar)
	s.m.SessionOp("get", ok)
	return data, ok
}

func (s *instrumentedSessions) DeleteSession(ctx context.Context, jar cookie.Jar) bool {
	ok := s.next.DeleteSession(ctx, jar)
	s.m.SessionOp("delete", ok)
	return ok
}
