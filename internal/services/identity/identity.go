// Package identity содержит логику бизнес-уровня для регистрации, входа
// и редактирования профиля пользователя.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"golang.org/x/time/rate"

	"github.com/piratproject/pirat-backend/internal/lib/jwt"
	"github.com/piratproject/pirat-backend/internal/lib/randcode"
	"github.com/piratproject/pirat-backend/internal/lib/sl"
	"github.com/piratproject/pirat-backend/internal/models"
	"github.com/piratproject/pirat-backend/internal/storage"
)

// defaultBio присваивается новому пользователю при регистрации.
const defaultBio = "Новый пользователь PiRAT"

// Service отвечает за учётные записи: регистрацию, вход, профиль
// и настройки безопасности.
type Service struct {
	store     storage.Store
	log       *slog.Logger
	validate  *validator.Validate
	tokens    jwt.Maker
	limiter   *rate.Limiter
	authDelay time.Duration
	now       func() time.Time
}

// New создает новый экземпляр Service. authDelay имитирует сетевую
// задержку настоящего бэкенда на операциях входа и регистрации.
func New(store storage.Store, tokens jwt.Maker, authDelay time.Duration, log *slog.Logger) *Service {
	return &Service{
		store:     store,
		log:       log,
		validate:  validator.New(),
		tokens:    tokens,
		limiter:   rate.NewLimiter(1, 3),
		authDelay: authDelay,
		now:       time.Now,
	}
}

// Register создает нового пользователя и возвращает его вместе с токеном
// сессии. Имя проверяется на зарезервированность и занятость, стартовые
// роли зависят от имени.
func (s *Service) Register(ctx context.Context, req models.DummyRegister) (*models.User, string, error) {
	const op = "identity.Register"

	if err := s.validate.Struct(req); err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	if err := s.simulateLatency(ctx); err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	if reservedUsername(req.Username) {
		return nil, "", fmt.Errorf("%s: %w", op, models.ErrUsernameReserved)
	}
	for i := range users {
		if users[i].Username == req.Username {
			return nil, "", fmt.Errorf("%s: %w", op, models.ErrUsernameTaken)
		}
	}

	code, err := s.uniqueReferralCode(users)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		ID:           nextUserID(users),
		Username:     req.Username,
		Password:     req.Password,
		CreatedAt:    s.now(),
		Bio:          defaultBio,
		Roles:        bootstrapRoles(req.Username),
		ReferralCode: code,
	}
	users = append(users, user)

	if err := s.store.Save(ctx, storage.CollectionUsers, users); err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Username, string(user.PrimaryRole()))
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user registered",
		slog.Int64("uid", user.ID),
		slog.String("username", user.Username),
		slog.String("role", string(user.PrimaryRole())))
	return &user, token, nil
}

// Login проверяет учётные данные и генерирует токен сессии. Частота
// попыток входа ограничена.
func (s *Service) Login(ctx context.Context, req models.DummyLogin) (*models.User, string, error) {
	const op = "identity.Login"

	if err := s.validate.Struct(req); err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	if !s.limiter.Allow() {
		return nil, "", fmt.Errorf("%s: %w", op, models.ErrTooManyAttempts)
	}
	if err := s.simulateLatency(ctx); err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	for i := range users {
		if users[i].Username == req.Username && users[i].Password == req.Password {
			user := users[i]
			token, err := s.tokens.GenerateToken(user.ID, user.Username, string(user.PrimaryRole()))
			if err != nil {
				return nil, "", fmt.Errorf("%s: %w", op, err)
			}
			s.log.Info("user logged in", slog.Int64("uid", user.ID))
			return &user, token, nil
		}
	}

	s.log.Warn("login failed", slog.String("username", req.Username))
	return nil, "", fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
}

// ValidateToken проверяет токен сессии и возвращает его claims.
func (s *Service) ValidateToken(token string) (*jwt.CustomClaims, error) {
	const op = "identity.ValidateToken"
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return claims, nil
}

// UpdateProfile изменяет биографию и аватар. Блокировка профиля отклоняет
// сохранение целиком, блокировка фото молча сохраняет прежний аватар.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, req models.DummyProfileUpdate) (*models.User, error) {
	const op = "identity.UpdateProfile"

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	idx := indexByID(users, userID)
	if idx < 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	user := &users[idx]

	nowMs := s.now().UnixMilli()
	if user.InfoLockedAt(nowMs) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrProfileLocked)
	}

	changed := false
	if user.Bio != req.Bio {
		user.Bio = req.Bio
		changed = true
	}
	if req.AvatarURL != user.AvatarURL && !user.PhotoLockedAt(nowMs) {
		user.AvatarURL = req.AvatarURL
		changed = true
	}
	if !changed {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNoChanges)
	}

	if err := s.store.Save(ctx, storage.CollectionUsers, users); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	updated := users[idx]
	return &updated, nil
}

// UpdateSecurity меняет контакт восстановления и пароль. Смена пароля
// требует действующий пароль и совпадающее подтверждение.
func (s *Service) UpdateSecurity(ctx context.Context, userID int64, req models.DummySecurityUpdate) (*models.User, error) {
	const op = "identity.UpdateSecurity"

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	idx := indexByID(users, userID)
	if idx < 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	user := &users[idx]

	changed := false
	if req.NewPassword != "" {
		if req.CurrentPassword != user.Password {
			return nil, fmt.Errorf("%s: %w", op, models.ErrPasswordMismatch)
		}
		if req.ConfirmPassword != req.NewPassword {
			return nil, fmt.Errorf("%s: %w", op, models.ErrPasswordConfirmation)
		}
		user.Password = req.NewPassword
		changed = true
	}
	if req.TelegramID != user.TelegramID {
		user.TelegramID = req.TelegramID
		changed = true
	}
	if !changed {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNoChanges)
	}

	if err := s.store.Save(ctx, storage.CollectionUsers, users); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("security settings updated", slog.Int64("uid", userID))
	updated := users[idx]
	return &updated, nil
}

// GetByID возвращает пользователя по идентификатору.
func (s *Service) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	const op = "identity.GetByID"

	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	idx := indexByID(users, userID)
	if idx < 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	user := users[idx]
	return &user, nil
}

// GetByUsername возвращает пользователя по имени (точное совпадение).
func (s *Service) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "identity.GetByUsername"

	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for i := range users {
		if users[i].Username == username {
			user := users[i]
			return &user, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
}

// ListUsers возвращает всех пользователей.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "identity.ListUsers"

	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

func (s *Service) loadUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.store.Load(ctx, storage.CollectionUsers, &users); err != nil {
		s.log.Error("failed to load users", sl.Err(err))
		return nil, err
	}
	return users, nil
}

// uniqueReferralCode генерирует код, не совпадающий с кодами существующих
// пользователей.
func (s *Service) uniqueReferralCode(users []models.User) (string, error) {
	for {
		code, err := randcode.Generate(randcode.ReferralLength)
		if err != nil {
			return "", err
		}
		taken := false
		for i := range users {
			if users[i].ReferralCode == code {
				taken = true
				break
			}
		}
		if !taken {
			return code, nil
		}
	}
}

func (s *Service) simulateLatency(ctx context.Context) error {
	if s.authDelay <= 0 {
		return nil
	}
	t := time.NewTimer(s.authDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// reservedUsername проверяет имя по списку зарезервированных:
// "developer" запрещён всегда, "root" и "dev" допустимы только в точном
// написании, имена со словом "admin" допустимы только как само "admin".
func reservedUsername(username string) bool {
	lower := strings.ToLower(username)
	switch {
	case lower == "developer":
		return true
	case lower == "root" && username != "root":
		return true
	case lower == "dev" && username != "dev":
		return true
	case strings.Contains(lower, "admin") && lower != "admin":
		return true
	}
	return false
}

// bootstrapRoles выдаёт стартовый набор ролей по имени пользователя.
func bootstrapRoles(username string) []models.Role {
	switch {
	case username == "root" || username == "PiRAT":
		return []models.Role{models.RoleOwner}
	case username == "dev":
		return []models.Role{models.RoleDeveloper}
	case strings.ToLower(username) == "admin":
		return []models.Role{models.RoleAdmin}
	default:
		return []models.Role{models.RoleUser}
	}
}

// nextUserID возвращает максимальный идентификатор плюс один, для пустой
// коллекции — ноль.
func nextUserID(users []models.User) int64 {
	var next int64
	for i := range users {
		if users[i].ID >= next {
			next = users[i].ID + 1
		}
	}
	return next
}

func indexByID(users []models.User, id int64) int {
	for i := range users {
		if users[i].ID == id {
			return i
		}
	}
	return -1
}
