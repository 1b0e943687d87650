package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	app "track-bot/internal/application"
	"track-bot/internal/container"
	"track-bot/internal/domain/entity"
	"track-bot/internal/tracker"
)

const (
	msgStart = `👋 Привет! Я сопровождаю объект на серии фотографий.

📸 Отправьте /track, затем первый кадр с подписью x,y,w,h — рамкой цели в пикселях.
Каждое следующее фото — новый кадр, я найду цель и пришлю рамку.

📋 Команды:
/track — начать сопровождение
/report — отчёт по последней сессии
/help — справка
/cancel — завершить сопровождение`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте /track
2️⃣ Пришлите первый кадр с подписью x,y,w,h (например: 120,80,60,140)
3️⃣ Присылайте следующие кадры — в ответ придёт фото с рамкой и уверенностью
4️⃣ /report — график уверенности по кадрам

💡 Рекомендации:
• Кадры должны быть одного размера и снятые с одной точки
• Рамка должна плотно охватывать объект

📋 Команды:
/track — начать сопровождение
/cancel — завершить сопровождение`

	msgAwaitingTarget = "📸 Отправьте первый кадр с подписью x,y,w,h — рамкой цели."
	msgCancelled      = "❌ Сопровождение завершено. Отправьте /track для новой сессии."
	msgNothingToStop  = "Активной сессии нет. Отправьте /track, чтобы начать."
	msgSendTrack      = "📸 Отправьте /track, чтобы начать сопровождение."
	msgUnknownCommand = "❓ Неизвестная команда. Используйте /help для справки."
	msgBadCaption     = "⚠️ Не удалось разобрать рамку: %v. Подпись к фото должна быть x,y,w,h."
	msgStarted        = "✅ Цель захвачена. Присылайте следующие кадры."
	msgTracked        = "Кадр %d: x=%.0f y=%.0f w=%.0f h=%.0f, уверенность %.2f"
	msgNoReport       = "Пока нет сессий для отчёта. Отправьте /track."
	msgProcessing     = "⚠️ Не удалось обработать изображение. Попробуйте другое фото."
	msgNotStarted     = "⚠️ Не удалось захватить цель: %s"
)

// Bot представляет Telegram-бота
type Bot struct {
	api      *tgbotapi.BotAPI
	users    *app.UserService
	tracking *app.TrackingService
	logger   *zap.Logger
}

// NewBot создаёт нового бота
func NewBot(token string, c *container.Container, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "connect to telegram")
	}

	logger.Info("authorized", zap.String("account", api.Self.UserName))

	return &Bot{
		api:      api,
		users:    c.UserService,
		tracking: c.TrackingService,
		logger:   logger,
	}, nil
}

// Run запускает основной цикл обработки сообщений до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.users.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.logger.Error("get user", zap.Int64("user", msg.From.ID), zap.Error(err))
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg, user)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendTrack)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	switch msg.Command() {
	case "start":
		if user.IsTracking() {
			_, _ = b.tracking.Stop(ctx, user.ID, user.ChatID)
		}
		if _, err := b.users.Cancel(ctx, user.ID, user.ChatID); err != nil {
			b.logger.Error("reset user", zap.Error(err))
		}
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "track":
		if user.IsTracking() {
			_, _ = b.tracking.Stop(ctx, user.ID, user.ChatID)
		}
		if _, err := b.users.BeginTracking(ctx, user.ID, user.ChatID); err != nil {
			b.logger.Error("begin tracking", zap.Error(err))
			return
		}
		b.sendMessage(msg.Chat.ID, msgAwaitingTarget)

	case "report":
		b.sendReport(ctx, msg.Chat.ID, user)

	case "cancel", "stop":
		if _, err := b.tracking.Stop(ctx, user.ID, user.ChatID); err != nil {
			if errors.Is(err, app.ErrNoSession) {
				b.sendMessage(msg.Chat.ID, msgNothingToStop)
				return
			}
			b.logger.Error("stop tracking", zap.Error(err))
		}
		b.sendMessage(msg.Chat.ID, msgCancelled)

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

// handlePhoto первый кадр с рамкой запускает сессию, следующие сопровождаются
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	if user.State == entity.StateMainMenu {
		b.sendMessage(msg.Chat.ID, msgSendTrack)
		return
	}

	// файл с максимальным разрешением
	photo := msg.Photo[len(msg.Photo)-1]
	imageData, err := b.downloadFile(photo.FileID)
	if err != nil {
		b.logger.Error("download photo", zap.String("file", photo.FileID), zap.Error(err))
		b.sendMessage(msg.Chat.ID, msgProcessing)
		return
	}

	switch user.State {
	case entity.StateAwaitingTarget:
		box, err := parseBox(msg.Caption)
		if err != nil {
			b.sendMessage(msg.Chat.ID, fmt.Sprintf(msgBadCaption, err))
			return
		}
		out, err := b.tracking.Start(ctx, user.ID, user.ChatID, imageData, box)
		if err != nil {
			b.logger.Warn("start tracking", zap.Int64("user", user.ID), zap.Error(err))
			b.sendMessage(msg.Chat.ID, fmt.Sprintf(msgNotStarted, describeError(err)))
			return
		}
		b.sendResult(msg.Chat.ID, out, msgStarted)

	case entity.StateTracking:
		out, err := b.tracking.TrackFrame(ctx, user.ID, imageData)
		if err != nil {
			b.logger.Warn("track frame", zap.Int64("user", user.ID), zap.Error(err))
			if errors.Is(err, app.ErrNoSession) {
				_, _ = b.users.Cancel(ctx, user.ID, user.ChatID)
				b.sendMessage(msg.Chat.ID, msgSendTrack)
				return
			}
			b.sendMessage(msg.Chat.ID, msgProcessing)
			return
		}
		b.sendResult(msg.Chat.ID, out, "")
	}
}

// sendResult отправляет фото с подсветкой или текст, если подсветка недоступна
func (b *Bot) sendResult(chatID int64, out *app.TrackOutput, prefix string) {
	r := out.Result.BBox
	text := fmt.Sprintf(msgTracked, out.Frame, r.X, r.Y, r.Width, r.Height, out.Result.Score)
	if prefix != "" {
		text = prefix + "\n" + text
	}
	if len(out.Highlighted) == 0 {
		b.sendMessage(chatID, text)
		return
	}
	b.sendPhoto(chatID, "track.jpg", out.Highlighted, text)
}

func (b *Bot) sendReport(ctx context.Context, chatID int64, user *entity.User) {
	rep, err := b.tracking.Report(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, app.ErrNoSession) {
			b.logger.Error("build report", zap.Int64("user", user.ID), zap.Error(err))
		}
		b.sendMessage(chatID, msgNoReport)
		return
	}
	b.sendPhoto(chatID, "report.png", rep.Chart, rep.Summary)
}

// describeError короткое пояснение ошибки трекера для пользователя
func describeError(err error) string {
	var ie *tracker.InferenceError
	switch {
	case errors.Is(err, tracker.ErrInvalidBox):
		return "у рамки должны быть положительные ширина и высота, и она должна лежать в пределах кадра"
	case errors.Is(err, tracker.ErrEmptyFrame):
		return "пустое изображение"
	case errors.As(err, &ie):
		return "сбой вычислительного бэкенда"
	default:
		return "не удалось прочитать изображение"
	}
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, errors.Wrap(err, "get file")
	}

	resp, err := http.Get(file.Link(b.api.Token))
	if err != nil {
		return nil, errors.Wrap(err, "download file")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("download file: status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}
	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send message", zap.Int64("chat", chatID), zap.Error(err))
	}
}

// sendPhoto отправляет изображение с подписью
func (b *Bot) sendPhoto(chatID int64, name string, data []byte, caption string) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	photo.Caption = caption
	if _, err := b.api.Send(photo); err != nil {
		b.logger.Error("send photo", zap.Int64("chat", chatID), zap.Error(err))
	}
}
