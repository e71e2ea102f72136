package config

type DatabaseConfig interface {
	GetDatabaseURL() string
	GetMigrationsTable() string
}

type Database struct {
	values fileValues
}

var _ DatabaseConfig = Database{}

func (d Database) GetDatabaseURL() string {
	return d.values.get("DATABASE_URL", "")
}

func (d Database) GetMigrationsTable() string {
	return d.values.get("MIGRATIONS_TABLE", "studio_schema_migrations")
}
