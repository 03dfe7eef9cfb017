package repository

// CacheRepository хранит разделяемое между инстансами состояние сессий.
// Сейчас это списки участников: движок добавляет и убирает своих
// участников, шлюз читает объединенный состав при кластерной рассылке.
type CacheRepository interface {
	// Delete удаляет ключ целиком (сессия завершена)
	Delete(key string) error

	SAdd(key string, members ...interface{}) error
	SRem(key string, members ...interface{}) error
	SMembers(key string) ([]string, error)
}
