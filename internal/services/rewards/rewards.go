// Package rewards содержит логику бизнес-уровня экономики подписки:
// промокоды, реферальные награды и начисление дней лицензии.
package rewards

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/piratproject/pirat-backend/internal/lib/sl"
	"github.com/piratproject/pirat-backend/internal/models"
	"github.com/piratproject/pirat-backend/internal/storage"
)

// Резервный код раздачи: действует, даже когда коллекция промокодов пуста,
// и не расходует активации.
const (
	fallbackCode = "FREE3DAY"
	fallbackDays = 3
)

// Tier — ступень реферальной программы. Награда выдаётся в момент, когда
// счётчик приглашений достигает ровно Count.
type Tier struct {
	Count int    `json:"count"`
	Days  int    `json:"days"`
	Label string `json:"label"`
}

// referralTiers упорядочены по возрастанию порога.
var referralTiers = []Tier{
	{Count: 1, Days: 1, Label: "Новичок"},
	{Count: 5, Days: 3, Label: "Активный"},
	{Count: 10, Days: 7, Label: "Пригласитель"},
	{Count: 30, Days: 30, Label: "Партнер"},
	{Count: 90, Days: 90, Label: "Амбассадор"},
}

// RedeemResult описывает успешную активацию кода.
type RedeemResult struct {
	Code string `json:"code"`
	Days int    `json:"days"`
}

// Progress описывает продвижение пользователя по реферальной программе.
type Progress struct {
	Count    int   `json:"count"`
	Achieved Tier  `json:"achieved"`
	Next     *Tier `json:"next,omitempty"`
}

// Service отвечает за промокоды и реферальные награды.
type Service struct {
	store    storage.Store
	log      *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// New создает новый экземпляр Service.
func New(store storage.Store, log *slog.Logger) *Service {
	return &Service{
		store:    store,
		log:      log,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Tiers возвращает ступени реферальной программы по возрастанию порога.
func (s *Service) Tiers() []Tier {
	tiers := make([]Tier, len(referralTiers))
	copy(tiers, referralTiers)
	return tiers
}

// Redeem активирует промокод для пользователя. Сравнение кода
// нечувствительно к регистру. Исчерпавший лимит код удаляется из
// коллекции. Резервный код действует при отсутствии записи в коллекции.
func (s *Service) Redeem(ctx context.Context, userID int64, code string) (*RedeemResult, error) {
	const op = "rewards.Redeem"

	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCode)
	}

	var users []models.User
	if err := s.store.Load(ctx, storage.CollectionUsers, &users); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	userIdx := -1
	for i := range users {
		if users[i].ID == userID {
			userIdx = i
			break
		}
	}
	if userIdx < 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}

	var codes []models.Promocode
	if err := s.store.Load(ctx, storage.CollectionPromocodes, &codes); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	codeIdx := -1
	for i := range codes {
		if strings.EqualFold(codes[i].Code, normalized) {
			codeIdx = i
			break
		}
	}

	var days int
	switch {
	case codeIdx >= 0:
		if codes[codeIdx].Exhausted() {
			return nil, fmt.Errorf("%s: %w", op, models.ErrCodeExhausted)
		}
		days = codes[codeIdx].Days
	case normalized == fallbackCode:
		days = fallbackDays
	default:
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCode)
	}

	// Сначала начисление пользователю, затем учёт активации: при сбое
	// между записями код остаётся активируемым, а не сгоревшим впустую.
	users[userIdx].SubscriptionDays += days
	if err := s.store.Save(ctx, storage.CollectionUsers, users); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if codeIdx >= 0 {
		codes[codeIdx].CurrentActivations++
		if codes[codeIdx].Exhausted() {
			codes = append(codes[:codeIdx], codes[codeIdx+1:]...)
		}
		if err := s.store.Save(ctx, storage.CollectionPromocodes, codes); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	s.log.Info("promocode redeemed",
		slog.Int64("uid", userID),
		slog.String("code", normalized),
		slog.Int("days", days))
	return &RedeemResult{Code: normalized, Days: days}, nil
}

// CreatePromocode добавляет новый код. Дубликат по нечувствительному
// к регистру сравнению отклоняется.
func (s *Service) CreatePromocode(ctx context.Context, createdBy int64, req models.DummyPromocode) (*models.Promocode, error) {
	const op = "rewards.CreatePromocode"

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var codes []models.Promocode
	if err := s.store.Load(ctx, storage.CollectionPromocodes, &codes); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	normalized := strings.ToUpper(strings.TrimSpace(req.Code))
	for i := range codes {
		if strings.EqualFold(codes[i].Code, normalized) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrDuplicateCode)
		}
	}

	promocode := models.Promocode{
		ID:             uuid.NewString(),
		Code:           normalized,
		Days:           req.Days,
		MaxActivations: req.MaxActivations,
		CreatedBy:      createdBy,
		CreatedAt:      s.now(),
	}
	codes = append(codes, promocode)

	if err := s.store.Save(ctx, storage.CollectionPromocodes, codes); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("promocode created",
		slog.String("code", promocode.Code),
		slog.Int("days", promocode.Days),
		slog.Int("max_activations", promocode.MaxActivations))
	return &promocode, nil
}

// DeletePromocode удаляет код по идентификатору.
func (s *Service) DeletePromocode(ctx context.Context, id string) error {
	const op = "rewards.DeletePromocode"

	var codes []models.Promocode
	if err := s.store.Load(ctx, storage.CollectionPromocodes, &codes); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for i := range codes {
		if codes[i].ID == id {
			codes = append(codes[:i], codes[i+1:]...)
			if err := s.store.Save(ctx, storage.CollectionPromocodes, codes); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			return nil
		}
	}
	return fmt.Errorf("%s: %w", op, models.ErrPromocodeNotFound)
}

// ListPromocodes возвращает все активные коды.
func (s *Service) ListPromocodes(ctx context.Context) ([]models.Promocode, error) {
	const op = "rewards.ListPromocodes"

	var codes []models.Promocode
	if err := s.store.Load(ctx, storage.CollectionPromocodes, &codes); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return codes, nil
}

// Progress возвращает продвижение пользователя по реферальной программе.
func (s *Service) Progress(ctx context.Context, userID int64) (*Progress, error) {
	const op = "rewards.Progress"

	var users []models.User
	if err := s.store.Load(ctx, storage.CollectionUsers, &users); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for i := range users {
		if users[i].ID != userID {
			continue
		}
		p := &Progress{Count: users[i].ReferralCount}
		for _, tier := range referralTiers {
			if p.Count >= tier.Count {
				p.Achieved = tier
				continue
			}
			next := tier
			p.Next = &next
			break
		}
		return p, nil
	}
	return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
}

// CompleteReferral засчитывает приглашение владельцу реферального кода и
// возвращает количество начисленных дней. Награда ступени выдаётся один
// раз: в момент, когда счётчик достигает ровно её порога.
func (s *Service) CompleteReferral(ctx context.Context, referralCode string) (int, error) {
	const op = "rewards.CompleteReferral"

	normalized := strings.ToUpper(strings.TrimSpace(referralCode))
	if normalized == "" {
		return 0, fmt.Errorf("%s: %w", op, models.ErrInvalidCode)
	}

	var users []models.User
	if err := s.store.Load(ctx, storage.CollectionUsers, &users); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	for i := range users {
		if users[i].ReferralCode != normalized {
			continue
		}
		users[i].ReferralCount++
		granted := 0
		for _, tier := range referralTiers {
			if users[i].ReferralCount == tier.Count {
				users[i].SubscriptionDays += tier.Days
				granted = tier.Days
				break
			}
		}
		if err := s.store.Save(ctx, storage.CollectionUsers, users); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		if granted > 0 {
			s.log.Info("referral tier reached",
				slog.Int64("uid", users[i].ID),
				slog.Int("count", users[i].ReferralCount),
				slog.Int("days", granted))
		}
		return granted, nil
	}

	s.log.Warn("referral code not found", sl.Op(op))
	return 0, fmt.Errorf("%s: %w", op, models.ErrInvalidCode)
}
