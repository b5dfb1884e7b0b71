package sql

func mysqlDialect() dialect {
	return dialect{
		quote: '`',
		types: []string{
			"BIGINT UNSIGNED NOT NULL PRIMARY KEY",
			"TEXT",
			"VARCHAR(45)",
			"VARCHAR(64)",
			"TEXT",
			"DOUBLE",
			"BIGINT",
			"BIGINT",
			"VARCHAR(16)",
		},
	}
}
