package domain

import "errors"

var (
	// ErrPollNotFound возвращается, если опрос не найден.
	ErrPollNotFound = errors.New("опрос не найден")
	// ErrResourceNotConfigured возвращается, если в базе нет нужной таблицы.
	ErrResourceNotConfigured = errors.New("ресурс хранилища не настроен")
)
