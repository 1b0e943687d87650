package port

import (
	"context"

	"track-bot/internal/domain/entity"
)

// Embedder интерфейс бэкенда, считающего эмбеддинг кропа
type Embedder interface {
	// Embed возвращает эмбеддинг кропа EXEMPLAR_SIZE или INSTANCE_SIZE
	Embed(ctx context.Context, patch entity.Patch) (entity.Tensor, error)
}

// Head интерфейс бэкенда, выполняющего совместный вывод головы трекера
type Head interface {
	// Infer возвращает тензор классификации [2,H,W] и тензор регрессии [4,H,W]
	Infer(ctx context.Context, template, search entity.Tensor) (cls, reg entity.Tensor, err error)
}

// InferenceBackend объединяет эмбеддер и голову одного бэкенда
type InferenceBackend interface {
	Embedder
	Head
}
