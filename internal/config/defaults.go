package config

const (
	defaultServerPort   = 8080
	defaultPostgresPort = 5432
	defaultMaxIdleConns = 10
	defaultMaxOpenConns = 100
)

func defaults() map[string]any {
	return map[string]any{
		"server.host":            "0.0.0.0",
		"server.port":            defaultServerPort,
		"server.read_timeout":    "10s",
		"server.write_timeout":   "30s",
		"server.idle_timeout":    "1m",
		"server.allowed_origins": []string{"https://*", "http://*"},

		"log.level":  "info",
		"log.format": "json",

		"database.driver":               "postgres",
		"database.host":                 "localhost",
		"database.port":                 defaultPostgresPort,
		"database.username":             "postgres",
		"database.password":             "",
		"database.database":             "todos",
		"database.schema":               "public",
		"database.sslmode":              "disable",
		"database.path":                 "todos.db",
		"database.max_idle_conns":       defaultMaxIdleConns,
		"database.max_open_conns":       defaultMaxOpenConns,
		"database.conn_max_lifetime":    "1h",
		"database.slow_query_threshold": "1s",
		"database.auto_migrate":         true,

		"storage.driver":            "disk",
		"storage.root":              "storage/app/public",
		"storage.public_url":        "/storage",
		"storage.s3.bucket":         "",
		"storage.s3.region":         "us-east-1",
		"storage.s3.endpoint":       "",
		"storage.s3.prefix":         "",
		"storage.s3.access_key":     "",
		"storage.s3.secret_key":     "",
		"storage.s3.use_path_style": false,

		"auth.jwt_secret": "",
		"auth.issuer":     "todo-tracker",
	}
}
