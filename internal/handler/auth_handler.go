package handler

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teacher-transfer-api/internal/dto"
	"github.com/noah-isme/teacher-transfer-api/internal/models"
	"github.com/noah-isme/teacher-transfer-api/internal/service"
	appErrors "github.com/noah-isme/teacher-transfer-api/pkg/errors"
	"github.com/noah-isme/teacher-transfer-api/pkg/response"
)

// AuthHandler wires HTTP endpoints to authentication and registration.
type AuthHandler struct {
	auth         *service.AuthService
	registration *service.RegistrationService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(auth *service.AuthService, registration *service.RegistrationService) *AuthHandler {
	return &AuthHandler{auth: auth, registration: registration}
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate user by username and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res)
}

// Register godoc
// @Summary Register an account
// @Description Provision a teacher, headteacher or admin account with generated credentials
// @Tags Authentication
// @Accept multipart/form-data
// @Produce json
// @Param role formData string true "Account role"
// @Param teacherData formData string false "Teacher profile JSON"
// @Param medicalCertificate formData file false "Medical certificate PDF"
// @Param academicQualifications formData file false "Academic qualifications PDF"
// @Param professionalQualifications formData file false "Professional qualifications PDF"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var form dto.RegisterForm
	if err := c.ShouldBind(&form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration form"))
		return
	}

	documents, closers, err := collectDocuments(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer func() {
		for _, closer := range closers {
			closer.Close() //nolint:errcheck
		}
	}()

	result, err := h.registration.Register(c.Request.Context(), form, documents)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// Me godoc
// @Summary Current user
// @Description Return the authenticated user with the linked teacher profile
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	info, err := h.auth.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, info)
}

func collectDocuments(c *gin.Context) ([]service.DocumentUpload, []multipart.File, error) {
	kinds := []string{
		service.DocumentKindMedical,
		service.DocumentKindAcademic,
		service.DocumentKindProfessional,
	}

	var documents []service.DocumentUpload
	var closers []multipart.File
	for _, kind := range kinds {
		header, err := c.FormFile(kind)
		if err != nil {
			if err == http.ErrMissingFile {
				continue
			}
			for _, closer := range closers {
				closer.Close() //nolint:errcheck
			}
			return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload")
		}
		file, err := header.Open()
		if err != nil {
			for _, closer := range closers {
				closer.Close() //nolint:errcheck
			}
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to open upload")
		}
		closers = append(closers, file)
		documents = append(documents, service.DocumentUpload{
			Kind:     kind,
			Filename: header.Filename,
			Size:     header.Size,
			Content:  file,
		})
	}
	return documents, closers, nil
}
