package bootstrap

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/campscout/internal/config"
	"github.com/jonesrussell/campscout/internal/database"
)

// DatabaseComponents holds the database connection and repositories.
type DatabaseComponents struct {
	DB *sqlx.DB

	Sources       *database.SourceRepository
	Jobs          *database.JobRepository
	Sessions      *database.SessionRepository
	Organizations *database.OrganizationRepository
	Camps         *database.CampRepository
	Requests      *database.RequestRepository
	Alerts        *database.AlertRepository
	Changes       *database.ChangeRepository
}

// SetupDatabase connects to PostgreSQL and creates the repositories.
func SetupDatabase(cfg *config.Config) (*DatabaseComponents, error) {
	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &DatabaseComponents{
		DB:            db,
		Sources:       database.NewSourceRepository(db),
		Jobs:          database.NewJobRepository(db),
		Sessions:      database.NewSessionRepository(db),
		Organizations: database.NewOrganizationRepository(db),
		Camps:         database.NewCampRepository(db),
		Requests:      database.NewRequestRepository(db),
		Alerts:        database.NewAlertRepository(db),
		Changes:       database.NewChangeRepository(db),
	}, nil
}
