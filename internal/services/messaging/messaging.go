// Package messaging содержит логику бизнес-уровня переписки: отправку,
// видимость сообщений, диалоги, блокировки и жалобы.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/piratproject/pirat-backend/internal/models"
	"github.com/piratproject/pirat-backend/internal/storage"
)

// systemUsername отображается как отправитель системных сообщений.
const systemUsername = "PiRAT"

// Service отвечает за переписку и жалобы.
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

// Send отправляет сообщение от имени пользователя. Отправка под мутом,
// самому себе и без содержимого отклоняется. Получатель личного сообщения
// идемпотентно добавляется в контакты отправителя. Имя и роли отправителя
// фиксируются снимком в самом сообщении.
func (s *Service) Send(ctx context.Context, senderID int64, req models.DummySend) (*models.Message, error) {
	const op = "messaging.Send"

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	text := strings.TrimSpace(req.Text)
	if text == "" && req.Image == "" {
		return nil, fmt.Errorf("%s: %w", op, models.ErrEmptyMessage)
	}

	var users []models.User
	if err := s.store.Load(ctx, storage.CollectionUsers, &users); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	senderIdx := indexByID(users, senderID)
	if senderIdx < 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	sender := &users[senderIdx]

	if sender.IsMutedAt(s.now().UnixMilli()) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrMuted)
	}

	if req.RecipientID != nil {
		if *req.RecipientID == senderID {
			return nil, fmt.Errorf("%s: %w", op, models.ErrSelfTarget)
		}
		if indexByID(users, *req.RecipientID) < 0 {
			return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
		}
		if sender.AddContact(*req.RecipientID) {
			if err := s.store.Save(ctx, storage.CollectionUsers, users); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
	}

	roles := make([]models.Role, len(sender.Roles))
	copy(roles, sender.Roles)

	msg := models.Message{
		SenderID:    senderID,
		RecipientID: req.RecipientID,
		Username:    sender.Username,
		Roles:       roles,
		Text:        text,
		Image:       req.Image,
	}
	saved, err := s.appendMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("message sent",
		slog.Int64("uid", senderID),
		slog.Bool("broadcast", saved.IsBroadcast()))
	return saved, nil
}

// SendSystem отправляет сообщение от имени системы. Nil recipientID
// означает широковещание.
func (s *Service) SendSystem(ctx context.Context, recipientID *int64, text string) (*models.Message, error) {
	const op = "messaging.SendSystem"

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: %w", op, models.ErrEmptyMessage)
	}

	msg := models.Message{
		SenderID:    models.SystemSenderID,
		RecipientID: recipientID,
		Username:    systemUsername,
		Text:        text,
		IsSystem:    true,
	}
	saved, err := s.appendMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return saved, nil
}

// appendMessage присваивает сообщению монотонный идентификатор на основе
// текущего времени и дописывает его в коллекцию.
func (s *Service) appendMessage(ctx context.Context, msg models.Message) (*models.Message, error) {
	var messages []models.Message
	if err := s.store.Load(ctx, storage.CollectionChatMessages, &messages); err != nil {
		return nil, err
	}

	id := s.now().UnixMilli()
	for i := range messages {
		if messages[i].ID >= id {
			id = messages[i].ID + 1
		}
	}
	msg.ID = id
	msg.Timestamp = id
	messages = append(messages, msg)

	if err := s.store.Save(ctx, storage.CollectionChatMessages, messages); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListVisible возвращает сообщения, видимые пользователю, в хронологическом
// порядке. Nil threadWith означает общий канал: широковещательные сообщения
// без заблокированных отправителей. Иначе возвращается личная переписка
// с указанным пользователем в обе стороны плюс системные сообщения,
// адресованные зрителю.
func (s *Service) ListVisible(ctx context.Context, viewerID int64, threadWith *int64) ([]models.Message, error) {
	const op = "messaging.ListVisible"

	var users []models.User
	if err := s.store.Load(ctx, storage.CollectionUsers, &users); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	viewerIdx := indexByID(users, viewerID)
	if viewerIdx < 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	viewer := users[viewerIdx]

	var messages []models.Message
	if err := s.store.Load(ctx, storage.CollectionChatMessages, &messages); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	visible := make([]models.Message, 0, len(messages))
	for _, m := range messages {
		// Заблокированный отправитель скрыт в любом срезе выдачи,
		// включая личную переписку, накопленную до блокировки.
		if !m.IsSystem && viewer.HasBlocked(m.SenderID) {
			continue
		}
		if threadWith == nil {
			if m.IsBroadcast() {
				visible = append(visible, m)
			}
			continue
		}
		if m.InvolvesPair(viewerID, *threadWith) {
			visible = append(visible, m)
			continue
		}
		if m.IsSystem && m.RecipientID != nil && *m.RecipientID == viewerID {
			visible = append(visible, m)
		}
	}

	sort.Slice(visible, func(i, j int) bool { return visible[i].ID < visible[j].ID })
	return visible, nil
}

// StartThread добавляет собеседника в активные контакты. Диалог с самим
// собой отклоняется.
func (s *Service) StartThread(ctx context.Context, viewerID, otherID int64) (*models.User, error) {
	const op = "messaging.StartThread"

	if viewerID == otherID {
		return nil, fmt.Errorf("%s: %w", op, models.ErrSelfTarget)
	}

	var users []models.User
	if err := s.store.Load(ctx, storage.CollectionUsers, &users); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	viewerIdx := indexByID(users, viewerID)
	if viewerIdx < 0 || indexByID(users, otherID) < 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}

	if users[viewerIdx].AddContact(otherID) {
		if err := s.store.Save(ctx, storage.CollectionUsers, users); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	viewer := users[viewerIdx]
	return &viewer, nil
}

// DeleteThread убирает собеседника из активных контактов. Сообщения
// переписки остаются в коллекции.
func (s *Service) DeleteThread(ctx context.Context, viewerID, otherID int64) (*models.User, error) {
	const op = "messaging.DeleteThread"

	var users []models.User
	if err := s.store.Load(ctx, storage.CollectionUsers, &users); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	viewerIdx := indexByID(users, viewerID)
	if viewerIdx < 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}

	if users[viewerIdx].RemoveContact(otherID) {
		if err := s.store.Save(ctx, storage.CollectionUsers, users); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	viewer := users[viewerIdx]
	return &viewer, nil
}

// Block скрывает отправителя: добавляет его в чёрный список и убирает
// из активных контактов.
func (s *Service) Block(ctx context.Context, viewerID, otherID int64) (*models.User, error) {
	const op = "messaging.Block"

	if viewerID == otherID {
		return nil, fmt.Errorf("%s: %w", op, models.ErrSelfTarget)
	}

	var users []models.User
	if err := s.store.Load(ctx, storage.CollectionUsers, &users); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	viewerIdx := indexByID(users, viewerID)
	if viewerIdx < 0 || indexByID(users, otherID) < 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}

	if users[viewerIdx].Block(otherID) {
		if err := s.store.Save(ctx, storage.CollectionUsers, users); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	viewer := users[viewerIdx]
	return &viewer, nil
}

// Contacts возвращает активные контакты пользователя в порядке добавления.
// Контакты, чьи учётные записи исчезли, пропускаются.
func (s *Service) Contacts(ctx context.Context, viewerID int64) ([]models.User, error) {
	const op = "messaging.Contacts"

	var users []models.User
	if err := s.store.Load(ctx, storage.CollectionUsers, &users); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	viewerIdx := indexByID(users, viewerID)
	if viewerIdx < 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}

	contacts := make([]models.User, 0, len(users[viewerIdx].ActiveContactIDs))
	for _, id := range users[viewerIdx].ActiveContactIDs {
		if idx := indexByID(users, id); idx >= 0 {
			contacts = append(contacts, users[idx])
		}
	}
	return contacts, nil
}

// Report создает жалобу на пользователя. Жалоба на самого себя отклоняется.
func (s *Service) Report(ctx context.Context, reporterID int64, req models.DummyReport) (*models.Report, error) {
	const op = "messaging.Report"

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if req.ReportedID == reporterID {
		return nil, fmt.Errorf("%s: %w", op, models.ErrSelfTarget)
	}

	var users []models.User
	if err := s.store.Load(ctx, storage.CollectionUsers, &users); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if indexByID(users, reporterID) < 0 || indexByID(users, req.ReportedID) < 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}

	var reports []models.Report
	if err := s.store.Load(ctx, storage.CollectionReports, &reports); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	report := models.Report{
		ID:          uuid.NewString(),
		ReporterID:  reporterID,
		ReportedID:  req.ReportedID,
		Reason:      req.Reason,
		Description: req.Description,
		Timestamp:   s.now().UnixMilli(),
		Status:      models.ReportStatusPending,
	}
	reports = append(reports, report)

	if err := s.store.Save(ctx, storage.CollectionReports, reports); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("report filed",
		slog.Int64("reporter", reporterID),
		slog.Int64("reported", req.ReportedID),
		slog.String("reason", req.Reason))
	return &report, nil
}

func indexByID(users []models.User, id int64) int {
	for i := range users {
		if users[i].ID == id {
			return i
		}
	}
	return -1
}
