package pickup

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"KidDrop/internal/auth"
	"KidDrop/internal/student"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// AlertCounter reports how many broadcast alerts are still pending, for the
// admin dashboard.
type AlertCounter interface {
	CountPending(ctx context.Context) (int64, error)
}

type LogHandler struct {
	logs     *LogRepository
	students *student.StudentRepository
	alerts   AlertCounter
	logger   *zap.Logger
}

func NewLogHandler(logs *LogRepository, students *student.StudentRepository, alerts AlertCounter, logger *zap.Logger) *LogHandler {
	return &LogHandler{logs: logs, students: students, alerts: alerts, logger: logger}
}

// Dropoff checks a student in. Only the owning parent may log it.
func (h *LogHandler) Dropoff(c echo.Context) error {
	return h.logActivity(c, TypeDropoff, student.StatusCheckedIn)
}

// Pickup checks a student out. Only the owning parent may log it.
func (h *LogHandler) Pickup(c echo.Context) error {
	return h.logActivity(c, TypePickup, student.StatusCheckedOut)
}

func (h *LogHandler) logActivity(c echo.Context, logType, newStatus string) error {
	claims, ok := c.Get("user").(*auth.JWTClaims)
	if !ok || claims == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
	}
	parentID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid token subject"})
	}
	studentID, err := primitive.ObjectIDFromHex(c.Param("studentId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid student id"})
	}

	ctx := c.Request().Context()
	st, err := h.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, student.ErrStudentNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Student not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server error"})
	}
	if st.ParentID != parentID {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Not authorized to update this student"})
	}

	now := time.Now()
	st.Status = newStatus
	st.LastActivity = &now
	st.UpdatedAt = now
	if err := h.students.Update(ctx, st); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server error"})
	}

	entry := &ActivityLog{
		ID:        primitive.NewObjectID(),
		StudentID: studentID,
		ParentID:  parentID,
		Type:      logType,
		Timestamp: now,
	}
	if err := h.logs.Create(ctx, entry); err != nil {
		h.logger.Error("failed to write activity log",
			zap.String("student_id", studentID.Hex()), zap.String("type", logType), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server error"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": logType + " logged", "newStatus": newStatus})
}

// Logs returns paginated activity logs, newest first. Admin only.
func (h *LogHandler) Logs(c echo.Context) error {
	limit, err := strconv.ParseInt(c.QueryParam("limit"), 10, 64)
	if err != nil || limit <= 0 {
		limit = 10
	}
	skip, err := strconv.ParseInt(c.QueryParam("skip"), 10, 64)
	if err != nil || skip < 0 {
		skip = 0
	}

	ctx := c.Request().Context()
	logs, err := h.logs.FindRecent(ctx, limit, skip)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch logs"})
	}
	total, err := h.logs.CountAll(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch logs"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"logs": logs,
		"pagination": map[string]int64{
			"total": total,
			"limit": limit,
			"skip":  skip,
		},
	})
}

// Stats returns dashboard counts. Admin only.
func (h *LogHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	checkedIn, err := h.students.CountByStatus(ctx, student.StatusCheckedIn)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server error"})
	}
	checkedOut, err := h.students.CountByStatus(ctx, student.StatusCheckedOut)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server error"})
	}
	total, err := h.students.CountAll(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server error"})
	}
	alerts, err := h.alerts.CountPending(ctx)
	if err != nil {
		h.logger.Warn("failed to count pending alerts", zap.Error(err))
		alerts = 0
	}

	return c.JSON(http.StatusOK, map[string]int64{
		"checkedIn":     checkedIn,
		"checkedOut":    checkedOut,
		"totalStudents": total,
		"alerts":        alerts,
	})
}
