// Package moderation содержит операции модераторского контура: муты,
// блокировки профиля, ручные начисления, работа с жалобами и промокодами.
// Каждая операция требует от действующего пользователя модераторской роли.
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-playground/validator"

	"github.com/piratproject/pirat-backend/internal/lib/sl"
	"github.com/piratproject/pirat-backend/internal/models"
	"github.com/piratproject/pirat-backend/internal/storage"
)

// PromocodeLedger описывает контракт учёта промокодов.
type PromocodeLedger interface {
	CreatePromocode(ctx context.Context, createdBy int64, req models.DummyPromocode) (*models.Promocode, error)
	DeletePromocode(ctx context.Context, id string) error
}

// SystemMessenger описывает контракт отправки системных сообщений.
type SystemMessenger interface {
	SendSystem(ctx context.Context, recipientID *int64, text string) (*models.Message, error)
}

// Service отвечает за модераторские операции.
type Service struct {
	store     storage.Store
	log       *slog.Logger
	validate  *validator.Validate
	promo     PromocodeLedger
	messenger SystemMessenger
	now       func() time.Time
}

// New создает новый экземпляр Service.
func New(store storage.Store, promo PromocodeLedger, messenger SystemMessenger, log *slog.Logger) *Service {
	return &Service{
		store:     store,
		log:       log,
		validate:  validator.New(),
		promo:     promo,
		messenger: messenger,
		now:       time.Now,
	}
}

// Mute запрещает пользователю отправку сообщений на заданный срок и
// уведомляет его системным сообщением.
func (s *Service) Mute(ctx context.Context, actorID int64, req models.DummyMute) (*models.User, error) {
	const op = "moderation.Mute"

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	users, _, err := s.requireModerator(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	targetIdx := indexByID(users, req.TargetID)
	if targetIdx < 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}

	until := s.now().Add(time.Duration(req.DurationMinutes) * time.Minute).UnixMilli()
	users[targetIdx].IsMuted = true
	users[targetIdx].MuteUntil = until

	if err := s.store.Save(ctx, storage.CollectionUsers, users); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	targetID := req.TargetID
	if _, err := s.messenger.SendSystem(ctx, &targetID,
		fmt.Sprintf("Вам ограничена отправка сообщений на %d мин.", req.DurationMinutes)); err != nil {
		s.log.Warn("failed to send mute notice", sl.Err(err))
	}

	s.log.Info("user muted",
		slog.Int64("actor", actorID),
		slog.Int64("target", req.TargetID),
		slog.Int("minutes", req.DurationMinutes))
	target := users[targetIdx]
	return &target, nil
}

// Unmute снимает запрет на отправку сообщений.
func (s *Service) Unmute(ctx context.Context, actorID, targetID int64) (*models.User, error) {
	const op = "moderation.Unmute"

	users, _, err := s.requireModerator(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	targetIdx := indexByID(users, targetID)
	if targetIdx < 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}

	users[targetIdx].IsMuted = false
	users[targetIdx].MuteUntil = 0

	if err := s.store.Save(ctx, storage.CollectionUsers, users); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	target := users[targetIdx]
	return &target, nil
}

// SetLocks устанавливает блокировки редактирования профиля и смены аватара.
// Нулевой срок при взведённом флаге означает бессрочную блокировку.
func (s *Service) SetLocks(ctx context.Context, actorID int64, req models.DummyLocks) (*models.User, error) {
	const op = "moderation.SetLocks"

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	users, _, err := s.requireModerator(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	targetIdx := indexByID(users, req.TargetID)
	if targetIdx < 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}

	users[targetIdx].IsInfoLocked = req.InfoLocked
	users[targetIdx].InfoLockUntil = req.InfoLockUntil
	users[targetIdx].IsPhotoLocked = req.PhotoLocked
	users[targetIdx].PhotoLockUntil = req.PhotoLockUntil

	if err := s.store.Save(ctx, storage.CollectionUsers, users); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("profile locks updated",
		slog.Int64("actor", actorID),
		slog.Int64("target", req.TargetID),
		slog.Bool("info", req.InfoLocked),
		slog.Bool("photo", req.PhotoLocked))
	target := users[targetIdx]
	return &target, nil
}

// GrantSubscription вручную начисляет пользователю дни подписки.
func (s *Service) GrantSubscription(ctx context.Context, actorID, targetID int64, days int) (*models.User, error) {
	const op = "moderation.GrantSubscription"

	if days <= 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidDays)
	}

	users, _, err := s.requireModerator(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	targetIdx := indexByID(users, targetID)
	if targetIdx < 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}

	users[targetIdx].SubscriptionDays += days

	if err := s.store.Save(ctx, storage.CollectionUsers, users); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("subscription granted",
		slog.Int64("actor", actorID),
		slog.Int64("target", targetID),
		slog.Int("days", days))
	target := users[targetIdx]
	return &target, nil
}

// ResolveReport закрывает жалобу, удаляя её из коллекции.
func (s *Service) ResolveReport(ctx context.Context, actorID int64, reportID string) error {
	const op = "moderation.ResolveReport"

	if _, _, err := s.requireModerator(ctx, actorID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var reports []models.Report
	if err := s.store.Load(ctx, storage.CollectionReports, &reports); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for i := range reports {
		if reports[i].ID == reportID {
			reports = append(reports[:i], reports[i+1:]...)
			if err := s.store.Save(ctx, storage.CollectionReports, reports); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			s.log.Info("report resolved",
				slog.Int64("actor", actorID),
				slog.String("report", reportID))
			return nil
		}
	}
	return fmt.Errorf("%s: %w", op, models.ErrReportNotFound)
}

// PendingReports возвращает жалобы, ожидающие рассмотрения.
func (s *Service) PendingReports(ctx context.Context, actorID int64) ([]models.Report, error) {
	const op = "moderation.PendingReports"

	if _, _, err := s.requireModerator(ctx, actorID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var reports []models.Report
	if err := s.store.Load(ctx, storage.CollectionReports, &reports); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pending := make([]models.Report, 0, len(reports))
	for _, r := range reports {
		if r.Pending() {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

// Staff возвращает пользователей с модераторскими ролями.
func (s *Service) Staff(ctx context.Context) ([]models.User, error) {
	const op = "moderation.Staff"

	var users []models.User
	if err := s.store.Load(ctx, storage.CollectionUsers, &users); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	staff := make([]models.User, 0)
	for _, u := range users {
		if u.IsModerator() {
			staff = append(staff, u)
		}
	}
	return staff, nil
}

// InspectConversation возвращает личную переписку двух пользователей
// в обе стороны без фильтров видимости.
func (s *Service) InspectConversation(ctx context.Context, actorID, a, b int64) ([]models.Message, error) {
	const op = "moderation.InspectConversation"

	if _, _, err := s.requireModerator(ctx, actorID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var messages []models.Message
	if err := s.store.Load(ctx, storage.CollectionChatMessages, &messages); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	thread := make([]models.Message, 0)
	for _, m := range messages {
		if m.InvolvesPair(a, b) {
			thread = append(thread, m)
		}
	}
	sort.Slice(thread, func(i, j int) bool { return thread[i].ID < thread[j].ID })
	return thread, nil
}

// CreatePromocode создает промокод от имени модератора.
func (s *Service) CreatePromocode(ctx context.Context, actorID int64, req models.DummyPromocode) (*models.Promocode, error) {
	const op = "moderation.CreatePromocode"

	if _, _, err := s.requireModerator(ctx, actorID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.promo.CreatePromocode(ctx, actorID, req)
}

// DeletePromocode удаляет промокод от имени модератора.
func (s *Service) DeletePromocode(ctx context.Context, actorID int64, id string) error {
	const op = "moderation.DeletePromocode"

	if _, _, err := s.requireModerator(ctx, actorID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.promo.DeletePromocode(ctx, id)
}

// requireModerator загружает пользователей и проверяет модераторскую роль
// действующего пользователя.
func (s *Service) requireModerator(ctx context.Context, actorID int64) ([]models.User, *models.User, error) {
	var users []models.User
	if err := s.store.Load(ctx, storage.CollectionUsers, &users); err != nil {
		return nil, nil, err
	}
	idx := indexByID(users, actorID)
	if idx < 0 {
		return nil, nil, models.ErrUserNotFound
	}
	if !users[idx].IsModerator() {
		return nil, nil, models.ErrPermissionDenied
	}
	return users, &users[idx], nil
}

func indexByID(users []models.User, id int64) int {
	for i := range users {
		if users[i].ID == id {
			return i
		}
	}
	return -1
}
