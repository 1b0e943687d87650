package entity

// UserState состояние пользователя в диалоге
type UserState string

const (
	StateMainMenu       UserState = "main_menu"       // В главном меню
	StateAwaitingTarget UserState = "awaiting_target" // Ожидание первого кадра с рамкой цели
	StateTracking       UserState = "tracking"        // Идёт сопровождение, каждое фото считается новым кадром
)

// User представляет пользователя бота
type User struct {
	ID     int64     // Telegram User ID
	ChatID int64     // Telegram Chat ID
	State  UserState // Текущее состояние пользователя
}

// NewUser создаёт нового пользователя с начальным состоянием
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// SetState обновляет состояние пользователя
func (u *User) SetState(state UserState) {
	u.State = state
}

// IsTracking сообщает, что у пользователя активна сессия сопровождения
func (u *User) IsTracking() bool {
	return u.State == StateTracking
}
