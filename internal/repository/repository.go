package repository

import "database/sql"

// Repository groups the Postgres repositories built on one pool.
type Repository struct {
	DB                 *sql.DB
	Users              UsersRepository
	Doctors            DoctorsRepository
	Profiles           PatientProfilesRepository
	Diagnostics        DiagnosticsRepository
	PatientDiagnostics PatientDiagnosticsRepository
	Responses          PatientResponsesRepository
	NotificationStatus NotificationStatusRepository
}

func New(db *sql.DB) *Repository {
	return &Repository{
		DB:                 db,
		Users:              NewPostgresUsersRepository(db),
		Doctors:            NewPostgresDoctorsRepository(db),
		Profiles:           NewPostgresPatientProfilesRepository(db),
		Diagnostics:        NewPostgresDiagnosticsRepository(db),
		PatientDiagnostics: NewPostgresPatientDiagnosticsRepository(db),
		Responses:          NewPostgresPatientResponsesRepository(db),
		NotificationStatus: NewPostgresNotificationStatusRepository(db),
	}
}
