package student

import (
	"errors"
	"net/http"

	"KidDrop/internal/auth"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type StudentHandler struct {
	service *StudentService
}

func NewStudentHandler(service *StudentService) *StudentHandler {
	return &StudentHandler{service: service}
}

func claimsUserID(c echo.Context) (primitive.ObjectID, error) {
	claims, ok := c.Get("user").(*auth.JWTClaims)
	if !ok || claims == nil {
		return primitive.NilObjectID, errors.New("missing user claims")
	}
	return primitive.ObjectIDFromHex(claims.UserID)
}

// ListStudents returns the whole roster. Admin only.
func (h *StudentHandler) ListStudents(c echo.Context) error {
	students, err := h.service.ListAll(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch students"})
	}
	return c.JSON(http.StatusOK, students)
}

// CreateStudent adds a roster entry, linking the parent's children list when
// a parent id is supplied. Admin only.
func (h *StudentHandler) CreateStudent(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if in.Name == "" || in.Grade == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Name and grade are required"})
	}

	st, err := h.service.AdminCreate(c.Request().Context(), in)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to add student"})
	}
	return c.JSON(http.StatusCreated, st)
}

func (h *StudentHandler) UpdateStudent(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid student id"})
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if in.Status != "" && !ValidStatus(in.Status) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid status"})
	}

	st, err := h.service.AdminUpdate(c.Request().Context(), id, in)
	if err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Student not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update student"})
	}
	return c.JSON(http.StatusOK, st)
}

func (h *StudentHandler) DeleteStudent(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid student id"})
	}

	if err := h.service.AdminDelete(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Student not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete student"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Student deleted successfully"})
}

// SetApproval approves or rejects a parent-submitted child. Admin only.
func (h *StudentHandler) SetApproval(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid student id"})
	}
	var req struct {
		ApprovalStatus string `json:"approvalStatus"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if !ValidApprovalStatus(req.ApprovalStatus) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid approval status"})
	}

	st, err := h.service.SetApproval(c.Request().Context(), id, req.ApprovalStatus)
	if err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Student not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update approval status"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "Student " + req.ApprovalStatus, "student": st})
}

// ListChildren returns the logged-in parent's children.
func (h *StudentHandler) ListChildren(c echo.Context) error {
	parentID, err := claimsUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
	}

	students, err := h.service.ListByParent(c.Request().Context(), parentID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch children"})
	}
	return c.JSON(http.StatusOK, students)
}

func (h *StudentHandler) GetChild(c echo.Context) error {
	parentID, err := claimsUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid student id"})
	}

	st, err := h.service.GetOwned(c.Request().Context(), id, parentID)
	if err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Student not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch student"})
	}
	return c.JSON(http.StatusOK, st)
}

// AddChild lets a parent register a child, pending admin approval.
func (h *StudentHandler) AddChild(c echo.Context) error {
	parentID, err := claimsUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if in.Name == "" || in.Grade == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Name and grade are required"})
	}

	st, err := h.service.ParentCreate(c.Request().Context(), parentID, in)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to add child"})
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"message": "Child added successfully", "student": st})
}

func (h *StudentHandler) UpdateChild(c echo.Context) error {
	parentID, err := claimsUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid student id"})
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	st, err := h.service.ParentUpdate(c.Request().Context(), id, parentID, in)
	if err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Student not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update student"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "Student updated", "student": st})
}
