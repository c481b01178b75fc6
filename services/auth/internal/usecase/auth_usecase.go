package usecase

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"taskflow/pkg/jwt"
	"taskflow/pkg/logger"
	"taskflow/pkg/models"
	"taskflow/services/auth/internal/repo/persistent"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const refreshTokenTTL = 7 * 24 * time.Hour

// TokenPair is the credential set handed to a client on login, registration
// and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type AuthUseCase interface {
	Register(email, username, password string) (*models.User, *TokenPair, error)
	Login(email, password string) (*models.User, *TokenPair, error)
	Refresh(refreshToken string) (*TokenPair, error)
	Logout(refreshToken string) error
	GetUser(userID string) (*models.User, error)
	ListUsers(page, limit int) ([]models.User, int64, error)
}

type authUseCase struct {
	userRepo   persistent.UserRepository
	jwtService *jwt.Service
	logger     *logger.Logger
}

func NewAuthUseCase(userRepo persistent.UserRepository, jwtService *jwt.Service, log *logger.Logger) AuthUseCase {
	return &authUseCase{
		userRepo:   userRepo,
		jwtService: jwtService,
		logger:     log,
	}
}

func (uc *authUseCase) Register(email, username, password string) (*models.User, *TokenPair, error) {
	if len(password) < 8 {
		return nil, nil, fmt.Errorf("password must be at least 8 characters")
	}

	if _, err := uc.userRepo.GetByEmail(email); err == nil {
		return nil, nil, fmt.Errorf("user with this email already exists")
	}
	if _, err := uc.userRepo.GetByUsername(username); err == nil {
		return nil, nil, fmt.Errorf("username already taken")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		uc.logger.Error("Failed to hash password: %v", err)
		return nil, nil, fmt.Errorf("failed to process registration")
	}

	user := &models.User{
		Email:    email,
		Username: username,
		Password: string(hashedPassword),
		Role:     models.RoleMember,
		IsActive: true,
	}
	if err := uc.userRepo.Create(user); err != nil {
		uc.logger.Error("Failed to create user: %v", err)
		return nil, nil, fmt.Errorf("failed to create user")
	}

	tokens, err := uc.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	user.Password = ""
	return user, tokens, nil
}

func (uc *authUseCase) Login(email, password string) (*models.User, *TokenPair, error) {
	user, err := uc.userRepo.GetByEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, fmt.Errorf("invalid credentials")
	}

	if !user.IsActive {
		return nil, nil, fmt.Errorf("account is deactivated")
	}

	tokens, err := uc.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	user.Password = ""
	return user, tokens, nil
}

// Refresh rotates the refresh token: the presented token is revoked and a new
// pair is issued. A revoked or expired token is rejected.
func (uc *authUseCase) Refresh(refreshToken string) (*TokenPair, error) {
	stored, err := uc.userRepo.GetRefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("invalid refresh token")
		}
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	if stored.IsRevoked || time.Now().After(stored.ExpiresAt) {
		return nil, fmt.Errorf("invalid refresh token")
	}

	user, err := uc.userRepo.GetByID(stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token")
	}
	if !user.IsActive {
		return nil, fmt.Errorf("account is deactivated")
	}

	if err := uc.userRepo.RevokeRefreshToken(refreshToken); err != nil {
		uc.logger.Error("Failed to revoke refresh token for user %s: %v", user.ID, err)
		return nil, fmt.Errorf("failed to refresh session")
	}

	return uc.issueTokens(user)
}

func (uc *authUseCase) Logout(refreshToken string) error {
	if err := uc.userRepo.RevokeRefreshToken(refreshToken); err != nil {
		uc.logger.Error("Failed to revoke refresh token: %v", err)
		return fmt.Errorf("failed to log out")
	}
	return nil
}

func (uc *authUseCase) GetUser(userID string) (*models.User, error) {
	user, err := uc.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.Password = ""
	return user, nil
}

func (uc *authUseCase) ListUsers(page, limit int) ([]models.User, int64, error) {
	users, total, err := uc.userRepo.List(page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	for i := range users {
		users[i].Password = ""
	}
	return users, total, nil
}

func (uc *authUseCase) issueTokens(user *models.User) (*TokenPair, error) {
	accessToken, err := uc.jwtService.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		uc.logger.Error("Failed to generate token: %v", err)
		return nil, fmt.Errorf("failed to generate token")
	}

	refreshToken, err := randomToken()
	if err != nil {
		uc.logger.Error("Failed to generate refresh token: %v", err)
		return nil, fmt.Errorf("failed to generate token")
	}

	err = uc.userRepo.CreateRefreshToken(&models.RefreshToken{
		Token:     refreshToken,
		UserID:    user.ID,
		ExpiresAt: time.Now().UTC().Add(refreshTokenTTL),
	})
	if err != nil {
		uc.logger.Error("Failed to store refresh token: %v", err)
		return nil, fmt.Errorf("failed to generate token")
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
