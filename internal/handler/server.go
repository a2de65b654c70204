package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"attendance/internal/attendance"
	"attendance/internal/bootstrap"
	"attendance/internal/capability"
	"attendance/internal/identity"
	"attendance/internal/queue"
	"attendance/internal/token"
	"attendance/internal/user"
)

// UserStore is what the handlers need from the user repository.
type UserStore interface {
	Get(ctx context.Context, id uuid.UUID) (*user.User, error)
	List(ctx context.Context) ([]user.User, error)
	SearchByName(ctx context.Context, fragment string) ([]user.User, error)
	MatchByName(ctx context.Context, fullName string) ([]user.User, error)
	identity.Directory
}

// TokenStore is the read side of the token repository.
type TokenStore interface {
	ListTokens(ctx context.Context) ([]token.Record, error)
}

// AttendanceReader serves the plain attendance queries.
type AttendanceReader interface {
	ListAll(ctx context.Context) ([]attendance.Record, error)
	ByDate(ctx context.Context, day time.Time) ([]attendance.Record, error)
	ByUser(ctx context.Context, userUUID uuid.UUID) ([]attendance.Record, error)
}

// Deps wires the server to its collaborators.
type Deps struct {
	Log        zerolog.Logger
	FirstRun   *bootstrap.FirstRun
	Tokens     *token.Service
	TokenStore TokenStore
	Users      UserStore
	UserSvc    *user.Service
	Resolver   *identity.Resolver
	Attendance *attendance.Service
	AttReader  AttendanceReader
	Queue      queue.Queue
}

// Server holds the HTTP handlers.
type Server struct {
	deps Deps
}

// New creates a server.
func New(d Deps) *Server {
	return &Server{deps: d}
}

// Register mounts the v1 API. Every route passes the auth gate; guarded
// routes additionally require a capability.
func (s *Server) Register(r *gin.Engine) {
	v1 := r.Group("/v1", s.AuthGate())

	v1.POST("/tokens", s.RequireCap(capability.Administrator), s.issueToken)
	v1.GET("/tokens", s.RequireCap(capability.Administrator), s.listTokens)

	v1.POST("/attendance/log", s.RequireCap(capability.Collector), s.logAttendance)
	v1.GET("/attendance", s.RequireCap(capability.Viewer), s.listAttendance)
	v1.GET("/attendance/by-date", s.RequireCap(capability.Viewer), s.attendanceByDate)

	v1.GET("/profile", s.RequireCap(capability.Viewer, capability.Collector), s.profile)

	v1.GET("/users", s.RequireCap(capability.Viewer), s.listUsers)
	v1.GET("/users/search", s.RequireCap(capability.Viewer), s.searchUsers)
	v1.GET("/users/by-name", s.RequireCap(capability.Viewer), s.matchUsers)
	v1.GET("/users/:uuid", s.RequireCap(capability.Viewer), s.getUser)
	v1.GET("/users/:uuid/attendance", s.RequireCap(capability.Viewer), s.userAttendance)
	v1.POST("/users", s.RequireCap(capability.Administrator), s.createUser)
	v1.PATCH("/users/:uuid", s.RequireCap(capability.Administrator), s.updateUser)
}
