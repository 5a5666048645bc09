package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/versiman/internal/common"
	"github.com/dmitrijs2005/versiman/internal/logging"
	"github.com/dmitrijs2005/versiman/internal/server/auth"
	"github.com/dmitrijs2005/versiman/internal/server/hash"
	"github.com/dmitrijs2005/versiman/internal/server/models"
	"github.com/dmitrijs2005/versiman/internal/server/repositories/repomanager"
)

// UserService manages operator accounts and issues access tokens.
type UserService struct {
	db            *sql.DB
	repos         repomanager.RepositoryManager
	hasher        *hash.Hasher
	secretKey     []byte
	tokenValidity time.Duration
	logger        logging.Logger
}

func NewUserService(db *sql.DB, repos repomanager.RepositoryManager, hasher *hash.Hasher,
	secretKey []byte, tokenValidity time.Duration, logger logging.Logger) *UserService {
	return &UserService{
		db:            db,
		repos:         repos,
		hasher:        hasher,
		secretKey:     secretKey,
		tokenValidity: tokenValidity,
		logger:        logger,
	}
}

// Create registers a new account. Usernames are stored lowercased, the way
// every creator lookup expects them. A taken username yields
// common.ErrorConflict.
func (s *UserService) Create(ctx context.Context, username, password string, roles []string) (*models.User, error) {
	repo := s.repos.Users(s.db)
	username = strings.ToLower(username)

	_, err := repo.GetByUsername(ctx, username)
	if err == nil {
		return nil, fmt.Errorf("%w: username %s is taken", common.ErrorConflict, username)
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("checking username: %w", err)
	}

	salt := s.hasher.GenerateSalt()
	user := &models.User{
		Username: username,
		PassHash: s.hasher.Hash(password, salt),
		Salt:     salt,
		Roles:    roles,
		IsActive: true,
	}

	created, err := repo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return created, nil
}

// Login verifies the credentials and returns a signed access token. Unknown
// usernames, wrong passwords and deactivated accounts are indistinguishable
// to the caller.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.repos.Users(s.db).GetByUsername(ctx, strings.ToLower(username))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", fmt.Errorf("resolving user: %w", err)
	}

	candidate := s.hasher.Hash(password, user.Salt)
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(user.PassHash)) != 1 || !user.IsActive {
		return "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(user.Username, user.Roles, s.secretKey, s.tokenValidity)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}

// ChangePassword replaces the password of an existing account, rotating
// the salt.
func (s *UserService) ChangePassword(ctx context.Context, id int64, password string) error {
	salt := s.hasher.GenerateSalt()
	if err := s.repos.Users(s.db).UpdatePassword(ctx, id, s.hasher.Hash(password, salt), salt); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return nil
}

// UpdateRoles replaces the account's role list.
func (s *UserService) UpdateRoles(ctx context.Context, id int64, roles []string) error {
	if err := s.repos.Users(s.db).UpdateRoles(ctx, id, roles); err != nil {
		return fmt.Errorf("updating roles: %w", err)
	}
	return nil
}

// SetActive enables or disables an account. A disabled account cannot log
// in; already-issued tokens stay valid until they expire.
func (s *UserService) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.repos.Users(s.db).SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	return s.repos.Users(s.db).GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	return s.repos.Users(s.db).List(ctx)
}

// EnsureDefaultAdmin creates the bootstrap administrator with the full role
// list when no account with that username exists yet.
func (s *UserService) EnsureDefaultAdmin(ctx context.Context, username, password string) error {
	username = strings.ToLower(username)
	_, err := s.repos.Users(s.db).GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("checking admin account: %w", err)
	}

	if _, err := s.Create(ctx, username, password, auth.Roles); err != nil {
		return fmt.Errorf("creating admin account: %w", err)
	}
	s.logger.Info(ctx, "created default admin account", "username", username)
	return nil
}
