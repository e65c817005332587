package repository

import (
	"attendly/internal/database"
)

type Repositories struct {
	Users         *UserRepository
	Events        *EventRepository
	Registrations *RegistrationRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Users:         NewUserRepository(db),
		Events:        NewEventRepository(db),
		Registrations: NewRegistrationRepository(db),
	}
}
