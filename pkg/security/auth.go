package security

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"equiploan/internal/repository"
	"equiploan/pkg/models"
	"equiploan/pkg/roles"

	"github.com/doug-martin/goqu/v9"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// Principal is the authenticated caller. The lending engine records its
// identity and trusts it without further checks.
type Principal struct {
	UserID   int
	Role     roles.Role
	Username string
}

func (p Principal) IsAdmin() bool {
	return p.Role.HasPermission(roles.Admin)
}

type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

func (t *Tokens) GenerateJWT(userID string, role roles.Role, username string) (string, error) {
	claims := jwt.MapClaims{
		"userID":   userID,
		"role":     role.String(),
		"username": username,
		"exp":      time.Now().Add(t.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

func (t *Tokens) Parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	return claims, nil
}

// CurrentPrincipal reads the identity stored by JWTMiddleware.
func CurrentPrincipal(c *gin.Context) (Principal, error) {
	rawID, exists := c.Get("userID")
	if !exists {
		return Principal{}, errors.New("userID missing from context")
	}
	idString, ok := rawID.(string)
	if !ok {
		return Principal{}, errors.New("userID is not a string")
	}
	userID, err := strconv.Atoi(idString)
	if err != nil || userID <= 0 {
		return Principal{}, fmt.Errorf("invalid userID %q", idString)
	}

	role, _ := c.Get("role")
	roleString, _ := role.(string)
	username, _ := c.Get("username")
	usernameString, _ := username.(string)

	return Principal{UserID: userID, Role: roles.Role(roleString), Username: usernameString}, nil
}

type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

type UserRepository struct {
	repository *repository.Repository
}

func NewUserRepository(r *repository.Repository) *UserRepository {
	return &UserRepository{repository: r}
}

func (u *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User

	query := u.repository.GoquDBWrapper.
		Select("id", "username", "fullname", "password_hash", "role").
		From("users").
		Where(goqu.Ex{"username": username})

	found, err := query.Executor().ScanStructContext(ctx, &user)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !found {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

func AuthenticateUser(ctx context.Context, username, password string, users UserFinder) (*models.User, error) {
	user, err := users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
