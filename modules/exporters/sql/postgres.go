package sql

func postgresDialect() dialect {
	return dialect{
		quote: '"',
		types: []string{
			"BIGINT NOT NULL PRIMARY KEY",
			"TEXT",
			"INET",
			"VARCHAR(64)",
			"TEXT",
			"DOUBLE PRECISION",
			"BIGINT",
			"BIGINT",
			"VARCHAR(16)",
		},
	}
}
