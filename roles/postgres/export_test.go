package postgres

var MigrateDatabaseURL = migrateDatabaseURL
