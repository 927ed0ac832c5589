package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/madhvv-7/E-waste-madhav/internal/models"
	"github.com/madhvv-7/E-waste-madhav/internal/repositories"
	"github.com/madhvv-7/E-waste-madhav/utils"
)

const defaultTokenTTL = 30 * 24 * time.Hour

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)
	phonePattern = regexp.MustCompile(`^\d{10}$`)
)

// AuthService registers accounts and exchanges credentials for tokens.
type AuthService struct {
	Accounts AccountStore
	Tokens   *utils.Manager
	TokenTTL time.Duration
	Logger   Logger
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	Address  string
	Phone    string
}

// Session is what a successful sign-in returns.
type Session struct {
	Token   string             `json:"token"`
	Account models.AccountView `json:"user"`
}

// Register creates an account. Citizens start active; agents and recyclers
// wait for approval. Admin accounts are never self-registered.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (models.AccountView, error) {
	name := strings.Join(strings.Fields(in.Name), " ")
	email := models.NormalizeEmail(in.Email)
	phone := strings.ReplaceAll(strings.TrimSpace(in.Phone), " ", "")

	if name == "" {
		return models.AccountView{}, errors.Wrap(models.ErrValidation, "name is required")
	}
	if email == "" || !emailPattern.MatchString(email) {
		return models.AccountView{}, errors.Wrap(models.ErrValidation, "email must be a valid address")
	}
	if in.Password == "" {
		return models.AccountView{}, errors.Wrap(models.ErrValidation, "password is required")
	}
	if phone != "" && !phonePattern.MatchString(phone) {
		return models.AccountView{}, errors.Wrap(models.ErrValidation, "phone number must be exactly 10 digits")
	}

	role := models.RoleCitizen
	if strings.TrimSpace(in.Role) != "" {
		r, ok := models.ParseRole(in.Role)
		if !ok {
			return models.AccountView{}, errors.Wrapf(models.ErrValidation, "unknown role %q", in.Role)
		}
		role = r
	}
	if role == models.RoleAdmin {
		return models.AccountView{}, errors.Wrap(models.ErrValidation, "admin accounts cannot be self-registered")
	}

	acct, err := s.create(ctx, name, email, in.Password, role, strings.Join(strings.Fields(in.Address), " "), phone)
	if err != nil {
		return models.AccountView{}, err
	}
	loggerOrNop(s.Logger).Infof("services: registered %s account %s (%s)", acct.Role, acct.ID, acct.Status)
	return acct.View(), nil
}

// CreateAdmin provisions an admin account. Used by the seed and admin tooling only.
func (s *AuthService) CreateAdmin(ctx context.Context, name, email, password string) (models.AccountView, error) {
	if password == "" {
		return models.AccountView{}, errors.Wrap(models.ErrValidation, "password is required")
	}
	acct, err := s.create(ctx, name, models.NormalizeEmail(email), password, models.RoleAdmin, "", "")
	if err != nil {
		return models.AccountView{}, err
	}
	return acct.View(), nil
}

func (s *AuthService) create(ctx context.Context, name, email, password string, role models.Role, address, phone string) (models.Account, error) {
	if _, err := s.Accounts.GetByEmail(ctx, email); err == nil {
		return models.Account{}, errors.Wrapf(models.ErrDuplicateEmail, "%s", email)
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return models.Account{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Account{}, errors.Wrap(err, "hash password")
	}
	acct, err := s.Accounts.Create(ctx, models.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Status:       models.InitialStatus(role),
		Address:      address,
		Phone:        phone,
	})
	if errors.Is(err, repositories.ErrDuplicate) {
		return models.Account{}, errors.Wrapf(models.ErrDuplicateEmail, "%s", email)
	}
	return acct, err
}

// Login checks credentials and issues an access token. Only active accounts
// may sign in; the error names the blocking status.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, errors.Wrap(models.ErrValidation, "email and password are required")
	}
	acct, err := s.Accounts.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return Session{}, models.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return Session{}, models.ErrInvalidCredentials
	}
	if acct.Status != models.AccountActive {
		return Session{}, notActive(acct.Status)
	}

	ttl := s.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	token, err := s.Tokens.NewJWT(acct.ID, string(acct.Role), ttl)
	if err != nil {
		return Session{}, errors.Wrap(err, "sign token")
	}
	return Session{Token: token, Account: acct.View()}, nil
}

// Authenticate turns a bearer token into an actor. The account is re-read so
// that a status change takes effect before the token expires.
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.Actor, error) {
	claims, err := s.Tokens.Parse(token)
	if err != nil {
		return models.Actor{}, errors.Wrap(models.ErrInvalidCredentials, err.Error())
	}
	acct, err := s.Accounts.GetByID(ctx, claims.UserID)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Actor{}, errors.Wrap(models.ErrInvalidCredentials, "account no longer exists")
	}
	if err != nil {
		return models.Actor{}, err
	}
	if acct.Status != models.AccountActive {
		return models.Actor{}, notActive(acct.Status)
	}
	return models.Actor{ID: acct.ID, Role: acct.Role}, nil
}

func notActive(status models.AccountStatus) error {
	switch status {
	case models.AccountPending:
		return errors.Wrap(models.ErrAccountNotActive, "your account is pending admin approval")
	case models.AccountRejected:
		return errors.Wrap(models.ErrAccountNotActive, "your account was rejected; you may submit an appeal")
	case models.AccountDeactivated:
		return errors.Wrap(models.ErrAccountNotActive, "your account is deactivated; you may submit an appeal")
	}
	return errors.Wrapf(models.ErrAccountNotActive, "account status %s", status)
}
