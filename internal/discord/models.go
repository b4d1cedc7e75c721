// Пакет discord — HTTP-клиент к Discord REST API.
// models.go — модели ответов Discord.
package discord

// Role — роль гильдии.
type Role struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    int    `json:"color"`
	Position int    `json:"position"`
	Managed  bool   `json:"managed"`
}

// Member — участник гильдии (используется только список ролей).
type Member struct {
	Roles []string `json:"roles"`
	Nick  *string  `json:"nick"`
}

// User — пользователь Discord (ответ /users/@me).
type User struct {
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	Discriminator *string `json:"discriminator"`
	Avatar        *string `json:"avatar"`
	GlobalName    *string `json:"global_name"`
}

// rateLimitBody — тело ответа 429.
type rateLimitBody struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}

// apiErrorBody — тело ответа об ошибке.
type apiErrorBody struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}
