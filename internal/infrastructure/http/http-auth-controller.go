package http

import (
	"net/http"

	"holidaysri-admin/internal/application/command"
	"holidaysri-admin/pkg/middleware"
	"holidaysri-admin/pkg/payoutapi"
	"holidaysri-admin/pkg/response"

	"github.com/go-playground/validator/v10"
)

// HTTPAuthController handles HTTP requests for authentication
type HTTPAuthController struct {
	loginHandler *command.LoginHandler
	validate     *validator.Validate
}

// NewHTTPAuthController creates a new HTTP auth controller
func NewHTTPAuthController(loginHandler *command.LoginHandler, validate *validator.Validate) *HTTPAuthController {
	return &HTTPAuthController{loginHandler: loginHandler, validate: validate}
}

// Login handles POST /auth/login
func (c *HTTPAuthController) Login(w http.ResponseWriter, r *http.Request) {
	var body payoutapi.LoginBody
	if !decodeAndValidate(w, r, c.validate, &body) {
		return
	}

	resp, err := c.loginHandler.Handle(r.Context(), &command.LoginCommand{
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		middleware.HandleError(w, r, err)
		return
	}

	response.SendSuccess(w, r, payoutapi.LoginResult{
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
		Admin: payoutapi.Admin{
			ID:    resp.Admin.ID,
			Name:  resp.Admin.Name,
			Email: resp.Admin.Email,
			Role:  resp.Admin.Role,
		},
	})
}
