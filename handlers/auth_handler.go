package handlers

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/anjiri1684/skillcoin/ledger"
	"github.com/anjiri1684/skillcoin/models"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	DisplayName string `json:"display_name" validate:"required,min=2"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	Role        string `json:"role" validate:"omitempty,oneof=student teacher"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// RegisterUser creates the account and its profile with the starting coin
// balance. Teachers start with the default hourly price.
func (h *Handler) RegisterUser(c *fiber.Ctx) error {
	const op = "auth.register"
	var req RegisterRequest
	if err := bind(c, op, &req); err != nil {
		return h.fail(c, op, err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return h.fail(c, op, err)
	}

	role := models.Role(req.Role)
	if role == "" {
		role = models.RoleStudent
	}
	user := models.User{
		ID:           uuid.NewString(),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hashed),
		Bio:          "I'm new to SkillCoin Connect!",
		Skills:       []string{},
		CourseIDs:    []string{},
		Coins:        h.startingCoins,
		Role:         role,
	}
	if role == models.RoleTeacher {
		price := int64(defaultTeacherPrice)
		user.PricePerHour = &price
	}

	if err := h.db.WithContext(c.UserContext()).Create(&user).Error; err != nil {
		if ledger.IsKind(ledger.MapError(op, err), ledger.KindAlreadyExists) {
			return h.fail(c, op, ledger.NewError(ledger.KindAlreadyExists, op, "Email already exists."))
		}
		return h.fail(c, op, err)
	}
	h.log.Info("user registered", "user_id", user.ID, "role", user.Role)

	go func(name, email string, coins int64) {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		body := fmt.Sprintf("<h1>Welcome, %s!</h1><p>Your account comes with %d coins to start learning.</p>", html.EscapeString(name), coins)
		if err := h.mailer.Send(ctx, name, email, "Welcome to SkillCoin!", body); err != nil {
			h.log.Warn("welcome email failed", "email", email, "error", err)
		}
	}(user.DisplayName, user.Email, user.Coins)

	token, err := h.issueToken(&user)
	if err != nil {
		return h.fail(c, op, err)
	}
	return c.Status(fiber.StatusCreated).JSON(AuthResponse{Token: token, User: &user})
}

func (h *Handler) LoginUser(c *fiber.Ctx) error {
	const op = "auth.login"
	var req LoginRequest
	if err := bind(c, op, &req); err != nil {
		return h.fail(c, op, err)
	}

	badCredentials := ledger.NewError(ledger.KindUnauthenticated, op, "Invalid email or password.")
	var user models.User
	res := h.db.WithContext(c.UserContext()).
		Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).
		Limit(1).Find(&user)
	if res.Error != nil {
		return h.fail(c, op, res.Error)
	}
	if res.RowsAffected == 0 {
		return h.fail(c, op, badCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return h.fail(c, op, badCredentials)
	}

	token, err := h.issueToken(&user)
	if err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(AuthResponse{Token: token, User: &user})
}

// LogoutUser records when the user was last seen. Tokens are stateless, so
// the client discards its own.
func (h *Handler) LogoutUser(c *fiber.Ctx) error {
	const op = "auth.logout"
	userID, err := caller(c, op)
	if err != nil {
		return h.fail(c, op, err)
	}
	if err := h.db.WithContext(c.UserContext()).Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_seen", h.now().UTC()).Error; err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) issueToken(u *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": u.ID,
		"role":    string(u.Role),
		"exp":     h.now().Add(tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtSecret)
}
