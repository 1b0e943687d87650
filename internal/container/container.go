package container

import (
	"go.uber.org/zap"

	app "track-bot/internal/application"
	"track-bot/internal/domain/port"
)

type Container struct {
	UserService     *app.UserService
	TrackingService *app.TrackingService
}

// Deps внешние зависимости сервисов приложения
type Deps struct {
	Users       port.UserRepository
	Tracks      port.TrackStore
	Highlighter port.TrackHighlighter
	Renderer    port.ReportRenderer
	NewTracker  app.TrackerFactory
	Decode      app.FrameDecoder
	Logger      *zap.Logger
}

func New(d Deps) *Container {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	userService := app.NewUserService(d.Users)
	trackingService := app.NewTrackingService(userService, d.NewTracker, d.Decode,
		d.Tracks, d.Highlighter, d.Renderer, d.Logger.Named("tracking"))

	return &Container{
		UserService:     userService,
		TrackingService: trackingService,
	}
}
