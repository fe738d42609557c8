package alert

import (
	"errors"
	"net/http"
	"time"

	"KidDrop/internal/auth"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AlertHandler struct {
	service *AlertService
}

func NewAlertHandler(service *AlertService) *AlertHandler {
	return &AlertHandler{service: service}
}

// SendAlertRequest is the admin submission for a broadcast alert.
type SendAlertRequest struct {
	AlertType          string          `json:"alertType"`
	AudienceType       string          `json:"audienceType"`
	RecipientGrades    []string        `json:"recipientGrades"`
	RecipientParentIDs []string        `json:"recipientParentIds"`
	Subject            string          `json:"subject"`
	MessageBody        string          `json:"messageBody"`
	Link               string          `json:"link"`
	DeliveryMethods    DeliveryMethods `json:"deliveryMethods"`
	ScheduleLater      bool            `json:"scheduleLater"`
	ScheduledDateTime  string          `json:"scheduledDateTime"`
}

func (req *SendAlertRequest) validate() error {
	if !ValidAlertType(req.AlertType) {
		return errors.New("alertType must be emergency, general, or friendly")
	}
	if !ValidAudienceType(req.AudienceType) {
		return errors.New("audienceType must be all, grades, individuals, or staff")
	}
	if req.Subject == "" || req.MessageBody == "" {
		return errors.New("subject and messageBody are required")
	}
	if !req.DeliveryMethods.App && !req.DeliveryMethods.Email && !req.DeliveryMethods.SMS {
		return errors.New("at least one delivery method is required")
	}
	if req.AudienceType == AudienceGrades && len(req.RecipientGrades) == 0 {
		return errors.New("recipientGrades is required for the grades audience")
	}
	if req.AudienceType == AudienceIndividuals && len(req.RecipientParentIDs) == 0 {
		return errors.New("recipientParentIds is required for the individuals audience")
	}
	return nil
}

// SendAlert creates a broadcast: either fanned out immediately or persisted
// as pending for the scheduler. Invalid submissions are rejected before
// anything is written. Admin only.
func (h *AlertHandler) SendAlert(c echo.Context) error {
	claims, ok := c.Get("user").(*auth.JWTClaims)
	if !ok || claims == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or missing token"})
	}
	senderID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid token subject"})
	}

	var req SendAlertRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := req.validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	parentIDs := make([]primitive.ObjectID, 0, len(req.RecipientParentIDs))
	for _, hex := range req.RecipientParentIDs {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid recipient parent id: " + hex})
		}
		parentIDs = append(parentIDs, id)
	}

	a := &Alert{
		SenderID:        senderID,
		AlertType:       req.AlertType,
		AudienceType:    req.AudienceType,
		Subject:         req.Subject,
		MessageBody:     req.MessageBody,
		Link:            req.Link,
		DeliveryMethods: req.DeliveryMethods,
	}
	if req.AudienceType == AudienceGrades {
		a.RecipientGrades = req.RecipientGrades
	}
	if req.AudienceType == AudienceIndividuals {
		a.RecipientParentIDs = parentIDs
	}

	ctx := c.Request().Context()

	if req.ScheduleLater {
		scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledDateTime)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "scheduledDateTime must be a valid RFC3339 timestamp"})
		}
		a.ScheduledAt = &scheduledAt
		if err := h.service.Schedule(ctx, a); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to schedule alert"})
		}
		return c.JSON(http.StatusCreated, map[string]string{"message": "Alert scheduled successfully"})
	}

	report, err := h.service.SendNow(ctx, a)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to send alert"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "Alert sent", "report": report})
}

// ListNotifications returns the logged-in parent's in-app notifications,
// newest first.
func (h *AlertHandler) ListNotifications(c echo.Context) error {
	claims, ok := c.Get("user").(*auth.JWTClaims)
	if !ok || claims == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or missing token"})
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid token subject"})
	}

	notes, err := h.service.ListPersonal(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch notifications"})
	}
	return c.JSON(http.StatusOK, notes)
}

// MarkRead marks one of the caller's notifications read. Scoped to the owning
// user: another user's notification id yields 404.
func (h *AlertHandler) MarkRead(c echo.Context) error {
	claims, ok := c.Get("user").(*auth.JWTClaims)
	if !ok || claims == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or missing token"})
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid token subject"})
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid notification id"})
	}

	if err := h.service.MarkRead(c.Request().Context(), id, userID); err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Notification not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to mark notification read"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Notification marked read"})
}
