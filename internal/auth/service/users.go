package service

import (
	"context"
	"strings"

	"miriesgo/internal/audit"
	"miriesgo/internal/auth/models"
	id "miriesgo/pkg/domain"
	dErrors "miriesgo/pkg/domain-errors"
	"miriesgo/pkg/requestcontext"
	"miriesgo/pkg/secrets"
)

const MinPasswordLength = 8

// CreateUserInput is an admin request to add an operator.
type CreateUserInput struct {
	CompanyID          *id.CompanyID
	FullName           string
	NationalIdentifier string
	Email              string
	Phone              string
	Password           string
	Role               id.Role
}

func (s *Service) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, translate(err, "failed to list users")
	}
	return users, nil
}

func (s *Service) GetUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, translate(err, "failed to load user")
	}
	return u, nil
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	if !in.Role.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "role must be one of admin, manager, analyst")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	hash, err := secrets.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	var created *models.User
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.users.Create(ctx, models.NewUser{
			CompanyID:          in.CompanyID,
			FullName:           in.FullName,
			NationalIdentifier: in.NationalIdentifier,
			Email:              strings.ToLower(in.Email),
			Phone:              in.Phone,
			PasswordHash:       hash,
			Role:               in.Role,
		})
		return err
	})
	if err != nil {
		return nil, translate(err, "failed to create user")
	}

	s.emit(ctx, audit.Entry{
		Action:    audit.ActionUserCreated,
		TableName: "users",
		RecordID:  created.ID.String(),
		Detail:    created.Role.String(),
	})
	return created, nil
}

// UpdateUser applies an admin patch. A non-nil password is re-hashed.
func (s *Service) UpdateUser(ctx context.Context, userID id.UserID, patch models.UserPatch, password *string) (*models.User, error) {
	if patch.Role != nil && !patch.Role.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "role must be one of admin, manager, analyst")
	}
	if password != nil {
		if len(*password) < MinPasswordLength {
			return nil, dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
		}
		hash, err := secrets.Hash(*password)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &hash
	}
	if patch.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one field must be provided")
	}

	var updated *models.User
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.users.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		patch.Apply(u)
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, translate(err, "failed to update user")
	}

	s.emit(ctx, audit.Entry{
		Action:    audit.ActionUserUpdated,
		TableName: "users",
		RecordID:  userID.String(),
		Detail:    describe(patch),
	})
	return updated, nil
}

// DeleteUser deactivates the account and closes its sessions. The row stays
// for the audit trail. Admins cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, userID id.UserID) error {
	p, ok := requestcontext.GetPrincipal(ctx)
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "not authenticated")
	}
	if p.UserID == userID {
		return dErrors.New(dErrors.CodeBadRequest, "you cannot delete your own account")
	}

	var closed []*models.Session
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.users.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		u.IsActive = false
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		closed, err = s.sessions.CloseByUser(ctx, userID)
		return err
	})
	if err != nil {
		return translate(err, "failed to delete user")
	}
	if err := s.revokeSessions(ctx, closed); err != nil {
		return err
	}

	s.emit(ctx, audit.Entry{
		Action:    audit.ActionUserDeleted,
		TableName: "users",
		RecordID:  userID.String(),
	})
	return nil
}

// ResetPassword sets a new password chosen by an admin and signs the user out
// everywhere.
func (s *Service) ResetPassword(ctx context.Context, userID id.UserID, password string) error {
	if len(password) < MinPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	hash, err := secrets.Hash(password)
	if err != nil {
		return err
	}

	var closed []*models.Session
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.users.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		closed, err = s.sessions.CloseByUser(ctx, userID)
		return err
	})
	if err != nil {
		return translate(err, "failed to reset password")
	}
	if err := s.revokeSessions(ctx, closed); err != nil {
		return err
	}

	s.emit(ctx, audit.Entry{
		Action:    audit.ActionPasswordReset,
		TableName: "users",
		RecordID:  userID.String(),
	})
	return nil
}

func describe(p models.UserPatch) string {
	var parts []string
	if p.FullName != nil || p.Phone != nil {
		parts = append(parts, "profile")
	}
	if p.Role != nil {
		parts = append(parts, "role="+p.Role.String())
	}
	if p.IsActive != nil {
		if *p.IsActive {
			parts = append(parts, "activated")
		} else {
			parts = append(parts, "deactivated")
		}
	}
	if p.CompanyID != nil || p.ClearCompany {
		parts = append(parts, "company")
	}
	if p.PasswordHash != nil {
		parts = append(parts, "password")
	}
	return strings.Join(parts, " ")
}
