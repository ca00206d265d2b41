package command

import (
	"context"
	stderrors "errors"
	"strings"

	"holidaysri-admin/internal/domain/repository"
	"holidaysri-admin/pkg/errors"
	jwtutil "holidaysri-admin/pkg/jwt"

	"github.com/rs/zerolog"
)

// LoginHandler authenticates admins and issues bearer tokens
type LoginHandler struct {
	uowFactory repository.UnitOfWorkFactory
	jwtManager *jwtutil.JWTManager
	log        zerolog.Logger
}

func NewLoginHandler(uowFactory repository.UnitOfWorkFactory, jwtManager *jwtutil.JWTManager, log zerolog.Logger) *LoginHandler {
	return &LoginHandler{uowFactory: uowFactory, jwtManager: jwtManager, log: log}
}

// Handle executes the login command
func (h *LoginHandler) Handle(ctx context.Context, cmd *LoginCommand) (*LoginResponse, error) {
	if cmd == nil || cmd.Email == "" || cmd.Password == "" {
		return nil, errors.NewValidationError("email and password are required")
	}

	uow := h.uowFactory.CreateUnitOfWork()
	defer uow.Close()

	admins := uow.AdminRepository()
	admin, err := admins.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(cmd.Email)))
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewUnauthorizedError("Invalid email or password")
		}
		return nil, errors.NewInternalError("failed to load admin")
	}

	if err := admin.VerifyPassword(cmd.Password); err != nil {
		return nil, errors.NewUnauthorizedError("Invalid email or password")
	}
	if !admin.IsActive() {
		return nil, errors.NewForbiddenError("Account is disabled")
	}

	token, expiresAt, err := h.jwtManager.GenerateToken(admin.ID(), admin.Email(), admin.Name(), string(admin.Role()))
	if err != nil {
		return nil, errors.NewInternalError("failed to issue token")
	}

	admin.UpdateLastLogin()
	if err := admins.Save(ctx, admin); err != nil {
		h.log.Warn().Err(err).Str("admin_id", admin.ID()).Msg("failed to record last login")
	}

	h.log.Info().Str("admin_id", admin.ID()).Msg("admin logged in")
	return &LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Admin: AdminView{
			ID:    admin.ID(),
			Name:  admin.Name(),
			Email: admin.Email(),
			Role:  string(admin.Role()),
		},
	}, nil
}
