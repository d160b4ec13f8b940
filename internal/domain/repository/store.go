package repository

import "database/sql"

func NewMemoryStore() *Store {
	return &Store{
		Users:    NewMemoryUserRepository(),
		Projects: NewMemoryProjectRepository(),
		Tasks:    NewMemoryTaskRepository(),
	}
}

func NewPostgresStore(db *sql.DB) *Store {
	return &Store{
		Users:    NewPgUserRepository(db),
		Projects: NewPgProjectRepository(db),
		Tasks:    NewPgTaskRepository(db),
	}
}
