package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"attendance/internal/attendance"
	"attendance/internal/capability"
	"attendance/internal/identity"
	"attendance/internal/queue"
	"attendance/internal/user"
)

// storageError logs the detail server-side and returns an opaque message.
func (s *Server) storageError(c *gin.Context, err error) {
	s.deps.Log.Error().Err(err).Str("path", c.FullPath()).Msg("storage failure")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
}

// identityError maps resolution failures to responses. The message names the
// hint that was attempted.
func (s *Server) identityError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, identity.ErrMissingIdentity), errors.Is(err, identity.ErrMalformedUUID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, identity.ErrEmailNotFound), errors.Is(err, identity.ErrAltIDNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.storageError(c, err)
	}
}

type hintsRequest struct {
	UUID     *string `json:"uuid" form:"uuid"`
	Email    *string `json:"email" form:"email"`
	AltField *string `json:"alt_field" form:"alt_field"`
	AltValue *string `json:"alt_value" form:"alt_value"`
}

func (h hintsRequest) hints() identity.Hints {
	return identity.Hints{UUID: h.UUID, Email: h.Email, AltField: h.AltField, AltValue: h.AltValue}
}

func (s *Server) issueToken(c *gin.Context) {
	var req struct {
		Description string `json:"description" binding:"required"`
		Capability  string `json:"capability" binding:"required"`
		NotBefore   *int64 `json:"nbf"`
		Expiration  int64  `json:"exp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cap, err := capability.Parse(req.Capability)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	exp := time.Unix(req.Expiration, 0).UTC()
	var nbf *time.Time
	if req.NotBefore != nil {
		t := time.Unix(*req.NotBefore, 0).UTC()
		nbf = &t
	}

	rec, signed, err := s.deps.Tokens.Issue(c.Request.Context(), req.Description, cap, nbf, exp)
	if err != nil {
		s.storageError(c, err)
		return
	}
	tokensIssued.Inc()

	c.JSON(http.StatusCreated, gin.H{
		"token":       signed,
		"uuid":        rec.UUID,
		"capability":  rec.Cap,
		"description": rec.Description,
		"exp":         rec.Expiration.Unix(),
	})
}

func (s *Server) listTokens(c *gin.Context) {
	recs, err := s.deps.TokenStore.ListTokens(c.Request.Context())
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": recs})
}

func (s *Server) logAttendance(c *gin.Context) {
	var req hintsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	uid, err := s.deps.Resolver.Resolve(ctx, req.hints())
	if err != nil {
		s.identityError(c, err)
		return
	}

	// A parseable uuid hint can still point at nobody.
	u, err := s.deps.Users.Get(ctx, uid)
	if err != nil {
		s.storageError(c, err)
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": user.ErrNotFound.Error()})
		return
	}

	rec, branch, err := s.deps.Attendance.Log(ctx, uid)
	if err != nil {
		s.storageError(c, err)
		return
	}

	if branch == attendance.Opened {
		sessionsOpened.Inc()
	} else {
		sessionsClosed.Inc()
	}

	evt := queue.SessionEvent{RecordID: rec.ID, UserUUID: rec.UserUUID.String(), At: rec.In}
	if rec.Out != nil {
		evt.At = *rec.Out
	}
	if err := s.deps.Queue.Publish(ctx, queue.Message{Type: branch, Body: evt.Encode()}); err != nil {
		s.deps.Log.Warn().Err(err).Msg("queue publish failed")
	}

	c.JSON(http.StatusOK, gin.H{"record": rec, "action": branch})
}

func (s *Server) profile(c *gin.Context) {
	hints := hintsRequest{
		UUID:     queryPtr(c, "uuid"),
		Email:    queryPtr(c, "email"),
		AltField: queryPtr(c, "alt_field"),
		AltValue: queryPtr(c, "alt_value"),
	}

	ctx := c.Request.Context()
	uid, err := s.deps.Resolver.Resolve(ctx, hints.hints())
	if err != nil {
		s.identityError(c, err)
		return
	}

	u, err := s.deps.Users.Get(ctx, uid)
	if err != nil {
		s.storageError(c, err)
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": user.ErrNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.deps.Users.List(c.Request.Context())
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (s *Server) searchUsers(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name query parameter required"})
		return
	}
	users, err := s.deps.Users.SearchByName(c.Request.Context(), name)
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (s *Server) matchUsers(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name query parameter required"})
		return
	}
	users, err := s.deps.Users.MatchByName(c.Request.Context(), name)
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (s *Server) getUser(c *gin.Context) {
	uid, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": identity.ErrMalformedUUID.Error()})
		return
	}
	u, err := s.deps.Users.Get(c.Request.Context(), uid)
	if err != nil {
		s.storageError(c, err)
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": user.ErrNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) userAttendance(c *gin.Context) {
	uid, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": identity.ErrMalformedUUID.Error()})
		return
	}
	recs, err := s.deps.AttReader.ByUser(c.Request.Context(), uid)
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": recs})
}

func (s *Server) listAttendance(c *gin.Context) {
	recs, err := s.deps.AttReader.ListAll(c.Request.Context())
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": recs})
}

func (s *Server) attendanceByDate(c *gin.Context) {
	day, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	recs, err := s.deps.AttReader.ByDate(c.Request.Context(), day)
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": recs})
}

func (s *Server) createUser(c *gin.Context) {
	var req struct {
		FullName    string            `json:"full_name" binding:"required"`
		Email       string            `json:"email" binding:"required"`
		PhoneNumber *string           `json:"phone_number"`
		AltIDs      map[string]string `json:"alt_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := s.deps.UserSvc.Create(c.Request.Context(), req.FullName, req.Email, req.PhoneNumber, req.AltIDs)
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (s *Server) updateUser(c *gin.Context) {
	uid, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": identity.ErrMalformedUUID.Error()})
		return
	}

	var patch user.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := s.deps.UserSvc.Update(c.Request.Context(), uid, patch)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": user.ErrNotFound.Error()})
			return
		}
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func queryPtr(c *gin.Context, key string) *string {
	if v := c.Query(key); v != "" {
		return &v
	}
	return nil
}
